package lifecycle

// Code identifies a class of rejected or failed lifecycle call, scoped to
// the schema registry's own failure modes.
type Code string

const (
	CodeMissingServiceName    Code = "MISSING_SERVICE_NAME"
	CodeMissingServiceURL     Code = "MISSING_SERVICE_URL"
	CodeInvalidSDL            Code = "INVALID_SDL"
	CodeCompositionFailed     Code = "COMPOSITION_FAILED"
	CodeBreakingChange        Code = "BREAKING_CHANGE"
	CodeAuthorizationFailed   Code = "AUTHORIZATION_FAILED"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeIdempotencyFailure    Code = "IDEMPOTENCY_FAILURE"
	CodeTargetNotFound        Code = "TARGET_NOT_FOUND"
	CodeUnsupportedOperation  Code = "UNSUPPORTED_OPERATION"
)

// Error is the typed error the coordinator returns for every rejected or
// failed call, so HTTP handlers can map it to a stable response shape
// instead of inspecting error strings.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
