package errors

// ErrorCode identifies an application error category in API responses.
type ErrorCode int32

const (
	ErrorCode_UNSPECIFIED ErrorCode = iota
	ErrorCode_INTERNAL
	ErrorCode_INVALID_ARGUMENT
	ErrorCode_NOT_FOUND
	ErrorCode_ALREADY_EXISTS
	ErrorCode_PERMISSION_DENIED
	ErrorCode_UNAUTHENTICATED
	ErrorCode_FORBIDDEN

	// Authentication
	ErrorCode_AUTH_INVALID_TOKEN
	ErrorCode_AUTH_TOKEN_EXPIRED
	ErrorCode_AUTH_INVALID_CREDENTIALS
	ErrorCode_AUTH_USER_NOT_FOUND
	ErrorCode_AUTH_INVALID_REFRESH_TOKEN

	// Sessions
	ErrorCode_SESSION_NOT_FOUND
	ErrorCode_SESSION_INVALID_STATE
	ErrorCode_SESSION_ALREADY_ANALYZING

	// Recordings
	ErrorCode_RECORDING_NOT_FOUND
	ErrorCode_RECORDING_UPLOAD_FAILED

	// Analysis
	ErrorCode_ANALYSIS_FAILED
	ErrorCode_ANALYSIS_UNAVAILABLE
	ErrorCode_ANALYSIS_QUOTA_EXCEEDED
	ErrorCode_TRANSCRIPTION_FAILED

	// History
	ErrorCode_RECORD_NOT_FOUND

	// Integrations
	ErrorCode_INTEGRATION_STORAGE_FAILED
	ErrorCode_INTEGRATION_CACHE_FAILED
	ErrorCode_INTEGRATION_EXTERNAL_API_FAILED

	// Database
	ErrorCode_DB_CONNECTION_FAILED
	ErrorCode_DB_QUERY_FAILED

	// Custom
	ErrorCode_INVALID_PAYLOAD
	ErrorCode_MISSING_SEGMENTS
	ErrorCode_HTTP_OK
)

// String returns the symbolic name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCode_INTERNAL:
		return "INTERNAL"
	case ErrorCode_INVALID_ARGUMENT:
		return "INVALID_ARGUMENT"
	case ErrorCode_NOT_FOUND:
		return "NOT_FOUND"
	case ErrorCode_ALREADY_EXISTS:
		return "ALREADY_EXISTS"
	case ErrorCode_PERMISSION_DENIED:
		return "PERMISSION_DENIED"
	case ErrorCode_UNAUTHENTICATED:
		return "UNAUTHENTICATED"
	case ErrorCode_FORBIDDEN:
		return "FORBIDDEN"
	case ErrorCode_AUTH_INVALID_TOKEN:
		return "AUTH_INVALID_TOKEN"
	case ErrorCode_AUTH_TOKEN_EXPIRED:
		return "AUTH_TOKEN_EXPIRED"
	case ErrorCode_AUTH_INVALID_CREDENTIALS:
		return "AUTH_INVALID_CREDENTIALS"
	case ErrorCode_AUTH_USER_NOT_FOUND:
		return "AUTH_USER_NOT_FOUND"
	case ErrorCode_AUTH_INVALID_REFRESH_TOKEN:
		return "AUTH_INVALID_REFRESH_TOKEN"
	case ErrorCode_SESSION_NOT_FOUND:
		return "SESSION_NOT_FOUND"
	case ErrorCode_SESSION_INVALID_STATE:
		return "SESSION_INVALID_STATE"
	case ErrorCode_SESSION_ALREADY_ANALYZING:
		return "SESSION_ALREADY_ANALYZING"
	case ErrorCode_RECORDING_NOT_FOUND:
		return "RECORDING_NOT_FOUND"
	case ErrorCode_RECORDING_UPLOAD_FAILED:
		return "RECORDING_UPLOAD_FAILED"
	case ErrorCode_ANALYSIS_FAILED:
		return "ANALYSIS_FAILED"
	case ErrorCode_ANALYSIS_UNAVAILABLE:
		return "ANALYSIS_UNAVAILABLE"
	case ErrorCode_ANALYSIS_QUOTA_EXCEEDED:
		return "ANALYSIS_QUOTA_EXCEEDED"
	case ErrorCode_TRANSCRIPTION_FAILED:
		return "TRANSCRIPTION_FAILED"
	case ErrorCode_RECORD_NOT_FOUND:
		return "RECORD_NOT_FOUND"
	case ErrorCode_INTEGRATION_STORAGE_FAILED:
		return "INTEGRATION_STORAGE_FAILED"
	case ErrorCode_INTEGRATION_CACHE_FAILED:
		return "INTEGRATION_CACHE_FAILED"
	case ErrorCode_INTEGRATION_EXTERNAL_API_FAILED:
		return "INTEGRATION_EXTERNAL_API_FAILED"
	case ErrorCode_DB_CONNECTION_FAILED:
		return "DB_CONNECTION_FAILED"
	case ErrorCode_DB_QUERY_FAILED:
		return "DB_QUERY_FAILED"
	case ErrorCode_INVALID_PAYLOAD:
		return "INVALID_PAYLOAD"
	case ErrorCode_MISSING_SEGMENTS:
		return "MISSING_SEGMENTS"
	case ErrorCode_HTTP_OK:
		return "OK"
	default:
		return "UNSPECIFIED"
	}
}
