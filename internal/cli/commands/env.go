package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connectome/emschema/internal/cli/config"
	"github.com/connectome/emschema/internal/cli/ui"
	cerrors "github.com/connectome/emschema/internal/compiler/errors"
	"github.com/connectome/emschema/internal/orm/migrate"
	"github.com/connectome/emschema/internal/orm/models"
	"github.com/connectome/emschema/internal/orm/schema"
	"github.com/connectome/emschema/internal/orm/schemas"
)

// errReported marks an error whose report was already written
var errReported = errors.New("command failed")

type globalOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

// env is the per-invocation state shared by the dataset commands
type env struct {
	opts     *globalOptions
	out      io.Writer
	errOut   io.Writer
	logger   *zap.Logger
	cfg      *config.Config
	registry *schema.Registry
	compiler *models.Compiler
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// setup loads the manifest and builds a compiler over the shipped schemas
func setup(cmd *cobra.Command, opts *globalOptions) (*env, error) {
	e := &env{
		opts:   opts,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		logger: newLogger(opts.verbose),
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		ui.ConfigError(err, opts.noColor).Write(e.errOut)
		return nil, errReported
	}
	e.cfg = cfg
	if cfg.File != "" {
		e.logger.Debug("loaded manifest", zap.String("file", cfg.File))
	}

	registry, err := schemas.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to register schemas: %w", err)
	}
	e.registry = registry
	e.compiler = models.NewCompiler(registry, models.WithLogger(e.logger))
	return e, nil
}

// compile compiles the manifest and returns its models parent-first
func (e *env) compile() ([]*models.Model, error) {
	dataset, err := e.compiler.CompileDataset(e.cfg.DatasetRequest())
	if err != nil {
		e.report(err)
		return nil, errReported
	}

	keys := make([]string, 0, len(dataset))
	for k := range dataset {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ms := make([]*models.Model, 0, len(keys))
	for _, k := range keys {
		ms = append(ms, dataset[k])
	}
	return migrate.Order(ms)
}

// compileFlat compiles every manifest table as a single flat table
func (e *env) compileFlat() ([]*models.Model, error) {
	var ms []*models.Model
	for _, t := range e.cfg.Tables {
		m, err := e.compiler.CompileFlatModel(t.Schema, models.ModelOptions{
			TableName:          t.Table,
			SegmentationSource: e.cfg.SegmentationSource,
			Metadata:           e.cfg.DatasetRequest().Metadata[t.Table],
		})
		if err != nil {
			e.report(fmt.Errorf("table %s (%s): %w", t.Table, t.Schema, err))
			return nil, errReported
		}
		ms = append(ms, m)
	}
	return ms, nil
}

func (e *env) report(err error) {
	var se *cerrors.SchemaError
	if cerrors.As(err, &se) && se.Code == cerrors.ErrCodeUnknownSchemaType {
		ui.UnknownTypesError(se.Message, se.Names, e.registry.GetTypes(), e.opts.noColor).Write(e.errOut)
		return
	}
	ui.CompileError(err, e.opts.noColor).Write(e.errOut)
}

func (e *env) close() {
	_ = e.logger.Sync()
}
