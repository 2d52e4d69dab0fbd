package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrForbidden     ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrAssessmentNotFound  ErrCode = "ASSESSMENT_NOT_FOUND"
	ErrAttemptLimitReached ErrCode = "ATTEMPT_LIMIT_REACHED"
	ErrSessionNotActive    ErrCode = "SESSION_NOT_ACTIVE"
	ErrWindowNotOpen       ErrCode = "WINDOW_NOT_OPEN"
	ErrWindowEnded         ErrCode = "WINDOW_ENDED"
	ErrSubmissionFailed    ErrCode = "SUBMISSION_FAILED"

	// ─── Code execution ────────────────────────────────────────────────
	ErrExecutionInFlight ErrCode = "EXECUTION_IN_FLIGHT"
	ErrJudgeRateLimited  ErrCode = "JUDGE_RATE_LIMITED"
	ErrJudgeTimeout      ErrCode = "JUDGE_TIMEOUT"
	ErrJudgeUnavailable  ErrCode = "JUDGE_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrForbidden:
		return "You do not have permission to access this resource."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "The resource already exists."

	case ErrAssessmentNotFound:
		return "The assessment could not be found."
	case ErrAttemptLimitReached:
		return "You have used all allowed attempts for this assessment."
	case ErrSessionNotActive:
		return "The session is not active."
	case ErrWindowNotOpen:
		return "The assessment has not started yet."
	case ErrWindowEnded:
		return "The assessment window has ended."
	case ErrSubmissionFailed:
		return "Your submission could not be saved. Please try again. Your answers are not lost."

	case ErrExecutionInFlight:
		return "A run is already in progress for this question."
	case ErrJudgeRateLimited:
		return "The code execution service is busy. Please wait a moment."
	case ErrJudgeTimeout:
		return "The code execution service did not finish in time."
	case ErrJudgeUnavailable:
		return "The code execution service is unavailable."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
