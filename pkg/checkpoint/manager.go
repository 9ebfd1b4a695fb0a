package checkpoint

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/geoguansin/normengine/pkg/orchestrator"
)

// Manager owns the checkpoint SQLite database: execution/log recording
// and checkpoint snapshot read/write. Implements orchestrator.Checkpointer
// structurally (mirroring pkg/sequence.ModelRunner's decoupling), so
// pkg/orchestrator never imports this package.
type Manager struct {
	db *bun.DB
}

// Open connects to the checkpoint database at dsn (a file path; ":memory:"
// for tests), enabling the same WAL/foreign-key pragmas the pack's
// modernc.org/sqlite usage favors for a single-writer embedded database.
func Open(dsn string) (*Manager, error) {
	sqldb, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", dsn, err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	return &Manager{db: db}, nil
}

// OpenDB wraps an already-configured bun.DB (the shape execution_repository_test.go
// uses for an in-memory test database).
func OpenDB(db *bun.DB) *Manager {
	return &Manager{db: db}
}

// Close releases the underlying database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Migrate creates the four checkpoint tables if they don't already
// exist. This module has no pre-existing single-run schema to evolve,
// so a legacy add-column backfill (run_id defaulting to "default",
// inference_count defaulting to 0) has nothing to apply to here.
// CreateTable starts every table with the final multi-run column set
// already in place.
func (m *Manager) Migrate(ctx context.Context) error {
	models := []any{
		(*ExecutionRow)(nil),
		(*LogRow)(nil),
		(*CheckpointRow)(nil),
		(*RunMetadataRow)(nil),
	}
	for _, model := range models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("checkpoint: migrate: %w", err)
		}
	}
	return nil
}

// RecordExecution inserts one attempt row into the executions table.
func (m *Manager) RecordExecution(ctx context.Context, row ExecutionRow) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	_, err := m.db.NewInsert().Model(&row).Exec(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint: record execution: %w", err)
	}
	return nil
}

// AppendLog inserts one log row tied to an execution attempt.
func (m *Manager) AppendLog(ctx context.Context, executionID uuid.UUID, content string) error {
	row := &LogRow{ID: uuid.New(), ExecutionID: executionID, LogContent: content}
	if _, err := m.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("checkpoint: append log: %w", err)
	}
	return nil
}

// SaveRunMetadata upserts the run_metadata row for runID.
func (m *Manager) SaveRunMetadata(ctx context.Context, runID string, metadataJSON string) error {
	row := &RunMetadataRow{RunID: runID, MetadataJSON: metadataJSON}
	_, err := m.db.NewInsert().Model(row).
		On("CONFLICT (run_id) DO UPDATE").
		Set("metadata_json = EXCLUDED.metadata_json").
		Set("timestamp = CURRENT_TIMESTAMP").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint: save run metadata: %w", err)
	}
	return nil
}

// WriteCheckpoint serializes snap into a StateDocument and inserts a new
// checkpoints row keyed by (run_id, cycle, inference_count), a
// composite key that allows multiple checkpoints per cycle rather than
// one-row-per-run. Satisfies orchestrator.Checkpointer.
func (m *Manager) WriteCheckpoint(ctx context.Context, snap orchestrator.Snapshot) error {
	doc := BuildStateDocument(snap)
	stateJSON, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("checkpoint: write checkpoint: %w", err)
	}
	row := &CheckpointRow{
		RunID:          snap.RunID,
		Cycle:          snap.Cycle,
		InferenceCount: snap.InferenceCount,
		StateJSON:      stateJSON,
	}
	if _, err := m.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("checkpoint: write checkpoint: %w", err)
	}
	return nil
}

// LatestCheckpoint loads the most recent checkpoint for runID (highest
// cycle, then highest inference_count), the record a resume or fork
// reconciles from.
func (m *Manager) LatestCheckpoint(ctx context.Context, runID string) (*StateDocument, error) {
	row := new(CheckpointRow)
	err := m.db.NewSelect().
		Model(row).
		Where("run_id = ?", runID).
		Order("cycle DESC", "inference_count DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: latest checkpoint for %q: %w", runID, err)
	}
	return UnmarshalStateDocument(row.StateJSON)
}
