package logging

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldRateID     = "rate_id"
	FieldMissionID  = "mission_id"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldCount      = "count"
	FieldTarget     = "target"
	FieldObjectKey  = "object_key"
	FieldDuration   = "duration_ms"
	FieldTimezone   = "timezone"
	FieldStatusCode = "status_code"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStorage  = "storage"
	ComponentRegistry = "registry"
	ComponentICS      = "ics"
	ComponentBackup   = "backup"
	ComponentSchedule = "scheduler"
)

// Operations defines standard operation names
const (
	OpCreate  = "create"
	OpRead    = "read"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpList    = "list"
	OpImport  = "import"
	OpExport  = "export"
	OpBackup  = "backup"
	OpRestore = "restore"
	OpPrune   = "prune"
	OpMigrate = "migrate"
	OpSeed    = "seed"
)
