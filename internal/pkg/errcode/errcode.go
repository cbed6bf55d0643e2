package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
	ErrUpstreamUnavailable
	ErrProjectNotFound
	ErrProjectDuplicate
	ErrProjectNameInvalid
	ErrProjectWrite
	ErrCasebaseNotFound
	ErrCaseNotFound
	ErrCaseDuplicate
	ErrCaseWrite
	ErrInvalidVectorArray
	ErrTokenNotFound
	ErrTokenInvalid
	ErrTokenWrite
)
