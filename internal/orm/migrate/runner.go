package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/connectome/emschema/internal/orm/codegen"
	"github.com/connectome/emschema/internal/orm/models"
)

// EnablePostGIS creates the extension backing geometry columns
const EnablePostGIS = "CREATE EXTENSION IF NOT EXISTS postgis;"

// Result lists the tables touched by Apply or Drop
type Result struct {
	Applied []string
	Skipped []string // already tracked
	Dropped []string
}

// Applier creates model tables with transaction support. Connection
// management stays with the caller.
type Applier struct {
	db        *sql.DB
	tracker   *Tracker
	generator *codegen.DDLGenerator
	logger    *zap.Logger
	retry     RetryConfig
}

// Option configures an Applier
type Option func(*Applier)

// WithLogger sets the logger used for apply events
func WithLogger(logger *zap.Logger) Option {
	return func(a *Applier) {
		a.logger = logger
	}
}

// NewApplier creates a new applier on db
func NewApplier(db *sql.DB, opts ...Option) *Applier {
	a := &Applier{
		db:        db,
		tracker:   NewTracker(db),
		generator: codegen.NewDDLGenerator(),
		logger:    zap.NewNop(),
		retry:     DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tracker returns the table tracker used by the applier
func (a *Applier) Tracker() *Tracker {
	return a.tracker
}

// Plan returns the DDL for models without executing it. Parent tables and
// referenced tables come before the tables that depend on them.
func Plan(ms []*models.Model) ([]string, error) {
	ordered, err := Order(ms)
	if err != nil {
		return nil, err
	}

	generator := codegen.NewDDLGenerator()
	var stmts []string
	if needsPostGIS(ordered) {
		stmts = append(stmts, EnablePostGIS)
	}
	for _, m := range ordered {
		ddl, err := generator.GenerateSchema(m.TableDict())
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", m.TableName(), err)
		}
		stmts = append(stmts, ddl...)
	}
	return stmts, nil
}

// Apply creates every table not yet tracked in a single transaction
func (a *Applier) Apply(ctx context.Context, ms []*models.Model) (*Result, error) {
	if err := a.tracker.Initialize(ctx); err != nil {
		return nil, err
	}

	ordered, err := Order(ms)
	if err != nil {
		return nil, err
	}
	pending, err := a.tracker.GetPending(ctx, ordered)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending tables: %w", err)
	}

	result := splitPending(ordered, pending)
	if len(pending) == 0 {
		a.logger.Info("no pending tables", zap.Int("tracked", len(result.Skipped)))
		return result, nil
	}

	start := time.Now()
	attempt := 0
	err = a.withRetry(ctx, func(tx *sql.Tx) error {
		// A concurrent applier may have created tables since the last attempt.
		if attempt++; attempt > 1 {
			pending, err = a.tracker.GetPendingTx(ctx, tx, ordered)
			if err != nil {
				return fmt.Errorf("failed to get pending tables: %w", err)
			}
			result = splitPending(ordered, pending)
		}

		if needsPostGIS(pending) {
			if _, err := tx.ExecContext(ctx, EnablePostGIS); err != nil {
				return fmt.Errorf("failed to enable postgis: %w", err)
			}
		}
		for _, m := range pending {
			ddl, err := a.generator.GenerateSchema(m.TableDict())
			if err != nil {
				return fmt.Errorf("table %s: %w", m.TableName(), err)
			}
			for _, stmt := range ddl {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("table %s: failed to execute DDL: %w", m.TableName(), err)
				}
			}
			if err := a.tracker.Record(ctx, tx, m); err != nil {
				return err
			}
			a.logger.Debug("created table", zap.String("table", m.TableName()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("applied tables",
		zap.Strings("tables", result.Applied),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

// Drop removes the tracked tables of models, dependents first
func (a *Applier) Drop(ctx context.Context, ms []*models.Model) (*Result, error) {
	ordered, err := Order(ms)
	if err != nil {
		return nil, err
	}

	if err := a.tracker.Initialize(ctx); err != nil {
		return nil, err
	}
	tracked, err := a.tracker.GetApplied(ctx)
	if err != nil {
		return nil, err
	}
	trackedSet := make(map[string]bool, len(tracked))
	for _, at := range tracked {
		trackedSet[at.TableName] = true
	}

	result := &Result{}
	err = a.withRetry(ctx, func(tx *sql.Tx) error {
		result.Dropped, result.Skipped = nil, nil
		for i := len(ordered) - 1; i >= 0; i-- {
			m := ordered[i]
			if !trackedSet[m.TableName()] {
				result.Skipped = append(result.Skipped, m.TableName())
				continue
			}
			if _, err := tx.ExecContext(ctx, a.generator.GenerateDropTable(m.TableDict())); err != nil {
				return fmt.Errorf("table %s: failed to drop: %w", m.TableName(), err)
			}
			if err := a.tracker.Remove(ctx, tx, m.TableName()); err != nil {
				return err
			}
			result.Dropped = append(result.Dropped, m.TableName())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("dropped tables", zap.Strings("tables", result.Dropped))
	return result, nil
}

func (a *Applier) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			a.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// splitPending reports pending models as applied and the rest as skipped
func splitPending(ordered, pending []*models.Model) *Result {
	result := &Result{}
	pendingSet := make(map[string]bool, len(pending))
	for _, m := range pending {
		pendingSet[m.TableName()] = true
		result.Applied = append(result.Applied, m.TableName())
	}
	for _, m := range ordered {
		if !pendingSet[m.TableName()] {
			result.Skipped = append(result.Skipped, m.TableName())
		}
	}
	return result
}

func needsPostGIS(ms []*models.Model) bool {
	for _, m := range ms {
		for _, c := range m.Columns() {
			if c.Type.Kind == codegen.KindGeometry {
				return true
			}
		}
	}
	return false
}
