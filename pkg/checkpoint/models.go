// Package checkpoint implements the SQLite-backed snapshot/restore
// layer: per-attempt execution rows, per-execution logs, composite-keyed
// checkpoint snapshots, run metadata, and PATCH/OVERWRITE/FILL_GAPS
// reconciliation on resume or fork. Grounded on a bun-ORM repository
// idiom, repointed from Postgres to SQLite.
package checkpoint

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ExecutionRow is one row of the executions table: one attempt at
// running a single flow index.
type ExecutionRow struct {
	bun.BaseModel `bun:"table:executions,alias:ex"`

	ID              uuid.UUID `bun:"id,pk,type:text,default:(hex(randomblob(16)))"`
	RunID           string    `bun:"run_id,notnull"`
	Cycle           int       `bun:"cycle,notnull"`
	FlowIndex       string    `bun:"flow_index,notnull"`
	InferenceType   string    `bun:"inference_type,notnull"`
	Status          string    `bun:"status,notnull"`
	ConceptInferred string    `bun:"concept_inferred,notnull"`
	Timestamp       time.Time `bun:"timestamp,notnull,default:current_timestamp"`
}

// LogRow is one row of the logs table: free-text log content tied to an
// execution attempt.
type LogRow struct {
	bun.BaseModel `bun:"table:logs,alias:lg"`

	ID          uuid.UUID `bun:"id,pk,type:text,default:(hex(randomblob(16)))"`
	ExecutionID uuid.UUID `bun:"execution_id,notnull,type:text"`
	LogContent  string    `bun:"log_content,notnull"`
}

// CheckpointRow is one row of the checkpoints table: a full state
// snapshot at a given (run_id, cycle, inference_count), the coordinate
// identifying a specific point in a run.
type CheckpointRow struct {
	bun.BaseModel `bun:"table:checkpoints,alias:cp"`

	RunID          string    `bun:"run_id,pk"`
	Cycle          int       `bun:"cycle,pk"`
	InferenceCount int       `bun:"inference_count,pk"`
	StateJSON      string    `bun:"state_json,notnull"`
	Timestamp      time.Time `bun:"timestamp,notnull,default:current_timestamp"`
}

// RunMetadataRow is one row of the run_metadata table.
type RunMetadataRow struct {
	bun.BaseModel `bun:"table:run_metadata,alias:rm"`

	RunID        string    `bun:"run_id,pk"`
	MetadataJSON string    `bun:"metadata_json,notnull"`
	Timestamp    time.Time `bun:"timestamp,notnull,default:current_timestamp"`
}
