package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden             ErrCode = "FORBIDDEN"
	ErrHostAccessOnly        ErrCode = "HOST_ACCESS_ONLY"
	ErrParticipantAccessOnly ErrCode = "PARTICIPANT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrInvalidTransition ErrCode = "INVALID_TRANSITION"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrQuestionsLocked   ErrCode = "QUESTIONS_LOCKED"
	ErrSessionNotRunning ErrCode = "SESSION_NOT_RUNNING"
	ErrNoCurrentQuestion ErrCode = "NO_CURRENT_QUESTION"
	ErrNotScored         ErrCode = "NOT_SCORED"
	ErrAlreadyAnswered   ErrCode = "ALREADY_ANSWERED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this session."
	case ErrHostAccessOnly:
		return "This action is limited to the session host."
	case ErrParticipantAccessOnly:
		return "This action is limited to session participants."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrInvalidTransition:
		return "The session cannot make this transition from its current status."
	case ErrNoQuestions:
		return "The session has no questions."
	case ErrQuestionsLocked:
		return "Questions cannot be added once the session has started."
	case ErrSessionNotRunning:
		return "The session is not in progress."
	case ErrNoCurrentQuestion:
		return "No question is currently showing."
	case ErrNotScored:
		return "Only exam sessions are scored."
	case ErrAlreadyAnswered:
		return "This question has already been answered."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
