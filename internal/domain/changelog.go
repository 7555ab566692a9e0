package domain

import "time"

// Operation types recorded in the change log.
const (
	OperationInsert      = "INSERT"
	OperationReplace     = "REPLACE"
	OperationUpsert      = "UPSERT"
	OperationSkip        = "SKIP"
	OperationMigration   = "MIGRATION"
	OperationSchemaDrift = "SCHEMA_DRIFT"
	OperationFieldChange = "FIELD_CHANGE"
	OperationAnomaly     = "ANOMALY"
	OperationDerive      = "DERIVE"
)

// ChangeLogEntry is one append-only audit row.
// Corresponds to data_change_log table.
type ChangeLogEntry struct {
	ID             int64
	RunID          string
	Timestamp      time.Time
	OperationType  string
	TableName      string
	AffectedRows   int64
	AdditionalData map[string]any
}
