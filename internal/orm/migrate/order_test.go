package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectome/emschema/internal/orm/models"
)

func tableNames(ms []*models.Model) []string {
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.TableName()
	}
	return names
}

func TestOrder_ParentBeforeSplit(t *testing.T) {
	base, split := splitModels(t)

	ordered, err := Order([]*models.Model{split})
	require.NoError(t, err)
	assert.Equal(t, []string{"syn", "syn__seg"}, tableNames(ordered))

	ordered, err = Order([]*models.Model{split, base, split})
	require.NoError(t, err)
	assert.Equal(t, []string{"syn", "syn__seg"}, tableNames(ordered))
}

func TestOrder_ReferencedTableFirst(t *testing.T) {
	c := models.NewCompiler(nil)
	cells := refModel(t, c, "cells", "elsewhere")
	tags := refModel(t, c, "tags", "cells")
	other := refModel(t, c, "other", "nowhere")

	ordered, err := Order([]*models.Model{tags, other, cells})
	require.NoError(t, err)
	assert.Equal(t, []string{"cells", "tags", "other"}, tableNames(ordered))
}

func TestOrder_Cycle(t *testing.T) {
	c := models.NewCompiler(nil)
	a := refModel(t, c, "a", "b")
	b := refModel(t, c, "b", "a")

	_, err := Order([]*models.Model{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestOrder_SelfReference(t *testing.T) {
	c := models.NewCompiler(nil)
	self := refModel(t, c, "self", "self")

	ordered, err := Order([]*models.Model{self})
	require.NoError(t, err)
	assert.Equal(t, []string{"self"}, tableNames(ordered))
}
