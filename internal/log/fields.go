package log

// Canonical field names for structured logging.
const (
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldUserID    = "user_id"
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldInterval  = "interval"
	FieldKey       = "key"
	FieldBackend   = "backend"

	FieldOldPhase = "old_phase"
	FieldNewPhase = "new_phase"
)
