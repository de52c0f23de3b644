package migrate

import (
	"fmt"

	"github.com/connectome/emschema/internal/orm/models"
)

// Order returns models so that every table follows the tables it depends on:
// the base table of a split and any table referenced by a foreign key that is
// part of the set. Missing base tables are pulled in from Parent. Ties keep
// input order and duplicates by table name are dropped.
func Order(ms []*models.Model) ([]*models.Model, error) {
	byName := make(map[string]*models.Model)
	var names []string
	var collect func(m *models.Model)
	collect = func(m *models.Model) {
		if m == nil {
			return
		}
		if _, seen := byName[m.TableName()]; seen {
			return
		}
		collect(m.Parent())
		byName[m.TableName()] = m
		names = append(names, m.TableName())
	}
	for _, m := range ms {
		collect(m)
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(names))
	ordered := make([]*models.Model, 0, len(names))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle involving table %s", name)
		}
		state[name] = visiting
		for _, dep := range dependencies(byName[name]) {
			if _, ok := byName[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		ordered = append(ordered, byName[name])
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func dependencies(m *models.Model) []string {
	var deps []string
	if m.Parent() != nil {
		deps = append(deps, m.Parent().TableName())
	}
	for _, c := range m.Columns() {
		if c.ForeignKey == "" {
			continue
		}
		if target := c.ForeignTable(); target != m.TableName() {
			deps = append(deps, target)
		}
	}
	return deps
}
