package apperr

// Code classifies an application error for transport mapping.
type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeResourceExhausted  Code = "RESOURCE_EXHAUSTED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// HTTPStatus maps a code to the HTTP status the handler layer responds with.
// Validation, conflict, and business-state failures are all 400; token-validity
// failures are 401; throttling is 429; infrastructure failures are 503.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument, CodeAlreadyExists, CodeNotFound, CodeFailedPrecondition:
		return 400
	case CodeUnauthenticated:
		return 401
	case CodeResourceExhausted:
		return 429
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}
