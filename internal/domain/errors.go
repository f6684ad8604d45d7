package domain

import "net/http"

// Error is the uniform application failure: a stable machine code, the HTTP
// status it maps to, a client-safe message, and optional structured details.
type Error struct {
	Code    string
	Status  int
	Message string
	Details any
}

func (e *Error) Error() string { return e.Message }

// WithDetails returns a copy of e carrying structured details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// BadRequest builds a 400 error.
func BadRequest(code, message string) *Error {
	return &Error{Code: code, Status: http.StatusBadRequest, Message: message}
}

// Unauthorized builds a 401 error.
func Unauthorized(code, message string) *Error {
	return &Error{Code: code, Status: http.StatusUnauthorized, Message: message}
}

// Forbidden builds a 403 error.
func Forbidden(code, message string) *Error {
	return &Error{Code: code, Status: http.StatusForbidden, Message: message}
}

// NotFound builds a 404 error.
func NotFound(code, message string) *Error {
	return &Error{Code: code, Status: http.StatusNotFound, Message: message}
}

// Conflict builds a 409 error.
func Conflict(code, message string) *Error {
	return &Error{Code: code, Status: http.StatusConflict, Message: message}
}

// Internal builds an opaque 500 error. The underlying cause is for the log,
// never the client.
func Internal() *Error {
	return &Error{Code: "INTERNAL_ERROR", Status: http.StatusInternalServerError, Message: "Internal Server Error"}
}

// Shared sentinels. Comparing with errors.Is works because handlers and
// repositories return these exact values; parameterized variants are built
// with the constructors above.
var (
	ErrUnauthorized       = Unauthorized("UNAUTHORIZED", "Unauthorized")
	ErrInvalidCredentials = Unauthorized("INVALID_CREDENTIALS", "Invalid credentials")
	ErrCSRFInvalid        = Forbidden("CSRF_INVALID", "Invalid CSRF token")
	ErrUserAlreadyExists  = Conflict("USER_ALREADY_EXISTS", "Email or username already exists")
	ErrUserNotFound       = NotFound("USER_NOT_FOUND", "User not found")
	ErrPhotoNotFound      = NotFound("PHOTO_NOT_FOUND", "Photo not found")
	ErrMaxPhotosReached   = Conflict("MAX_PHOTOS_REACHED", "Maximum of 5 photos (including avatar)")
	ErrGalleryFull        = Conflict("GALLERY_FULL", "Gallery is full")
	ErrDuplicateIDs       = BadRequest("DUPLICATE_IDS", "Duplicate ids")
	ErrDuplicatePositions = BadRequest("DUPLICATE_POSITIONS", "Duplicate positions")
	ErrInvalidIDs         = BadRequest("INVALID_IDS", "Some ids are invalid")
	ErrInvalidPositions   = BadRequest("INVALID_POSITIONS", "Positions must be a 1..N permutation")
	ErrNoFile             = BadRequest("NO_FILE", "No file uploaded")
	ErrUnsupportedType    = BadRequest("UNSUPPORTED_TYPE", "Unsupported image type")
	ErrMissingToken       = BadRequest("MISSING_TOKEN", "Missing token")
	ErrInvalidToken       = BadRequest("INVALID_TOKEN", "Invalid token")
	ErrTokenExpired       = BadRequest("TOKEN_EXPIRED", "Token expired")
	ErrTokenAlreadyUsed   = BadRequest("TOKEN_ALREADY_USED", "Token already used")
)
