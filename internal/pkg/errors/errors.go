package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
	ErrUnavailable  = errors.New("upstream unavailable")
)

type Kind string

const (
	KindProjectNotFound     Kind = "ProjectNotFound"
	KindProjectDuplicate    Kind = "ProjectDuplicateException"
	KindProjectNameInvalid  Kind = "ProjectNameException"
	KindProjectCreate       Kind = "ProjectCreateException"
	KindProjectUpdate       Kind = "ProjectUpdateException"
	KindProjectDelete       Kind = "ProjectDeleteException"
	KindCasebaseNotFound    Kind = "CasebaseNotFound"
	KindCasebaseDelete      Kind = "CasebaseDeleteException"
	KindCaseNotFound        Kind = "CaseNotFoundException"
	KindCaseDuplicate       Kind = "CaseDuplicateException"
	KindCaseUpdate          Kind = "CaseUpdateException"
	KindCaseDelete          Kind = "CaseDeleteException"
	KindInvalidVectorArray  Kind = "InvalidVectorArrayException"
	KindTokenNotFound       Kind = "TokenNotFound"
	KindTokenName           Kind = "TokenNameException"
	KindTokenCreate         Kind = "TokenCreateException"
	KindTokenDelete         Kind = "TokenDeleteException"
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	KindUnauthorized        Kind = "Unauthorized"
	KindInvalidRequest      Kind = "InvalidRequest"
)

// Error is a domain failure rendered to clients as {type, message, detail}.
type Error struct {
	Kind    Kind   `json:"type"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a domain error against the sentinel of its class.
func (e *Error) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

func (k Kind) Sentinel() error {
	switch k {
	case KindProjectNotFound, KindCasebaseNotFound, KindCaseNotFound, KindTokenNotFound:
		return ErrNotFound
	case KindProjectDuplicate, KindCaseDuplicate:
		return ErrConflict
	case KindProjectNameInvalid, KindInvalidVectorArray, KindTokenName, KindInvalidRequest:
		return ErrInvalid
	case KindUpstreamUnavailable:
		return ErrUnavailable
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return ErrInternal
	}
}

func newError(kind Kind, message, detail string, err error) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail, Err: err}
}

const contactAdmin = "Contact system administrator for additional information"

func ProjectNotFound() *Error {
	return newError(KindProjectNotFound, "Could not find the specified project", "Please check that the project ID is correct", nil)
}

func ProjectDuplicate() *Error {
	return newError(KindProjectDuplicate, "Casebase already exists", "Choose a different name for the casebase", nil)
}

func ProjectNameInvalid() *Error {
	return newError(KindProjectNameInvalid, "A new project has to specify a name", "Please specify a name attribute when creating a new project", nil)
}

func ProjectCreate(err error) *Error {
	return newError(KindProjectCreate, "Failed to create new project", contactAdmin, err)
}

func ProjectUpdate(err error) *Error {
	return newError(KindProjectUpdate, "Failed to update project", contactAdmin, err)
}

func ProjectDelete(err error) *Error {
	return newError(KindProjectDelete, "Failed to delete project", contactAdmin, err)
}

func CasebaseNotFound() *Error {
	return newError(KindCasebaseNotFound, "Could not find a casebase attached to the project", "Make sure you have added data to the project", nil)
}

func CasebaseDelete(err error) *Error {
	return newError(KindCasebaseDelete, "Could not delete the casebase for the specified project", "Check to see that the project id is correct", err)
}

func CaseNotFound() *Error {
	return newError(KindCaseNotFound, "Could not find the specified case", "Make sure that the case id is correct", nil)
}

func CaseDuplicate() *Error {
	return newError(KindCaseDuplicate, "The case already exists in the casebase", "Enable retainDuplicateCases on the project to keep duplicates", nil)
}

func CaseUpdate(err error) *Error {
	return newError(KindCaseUpdate, "Could not update the specified case", contactAdmin, err)
}

func CaseDelete(err error) *Error {
	return newError(KindCaseDelete, "Could not delete the specified case", contactAdmin, err)
}

func InvalidVectorArray(attr string, want int) *Error {
	return newError(KindInvalidVectorArray, "Invalid vector array for attribute "+attr,
		fmt.Sprintf("Expected a list of %d numbers", want), nil)
}

func TokenNotFound() *Error {
	return newError(KindTokenNotFound, "Could not find the specified token", "Make sure that the token id is correct", nil)
}

func TokenName() *Error {
	return newError(KindTokenName, "A new token has to specify a name", "Please specify a name attribute when creating a new token", nil)
}

func TokenCreate(err error) *Error {
	return newError(KindTokenCreate, "Failed to create new token", contactAdmin, err)
}

func TokenDelete(err error) *Error {
	return newError(KindTokenDelete, "Failed to delete token", contactAdmin, err)
}

func UpstreamUnavailable(service string, err error) *Error {
	return newError(KindUpstreamUnavailable, service+" is unavailable", "Check the service endpoint and access key", err)
}

func Unauthorized() *Error {
	return newError(KindUnauthorized, "Invalid or expired token", "Supply a valid bearer token", nil)
}

func InvalidRequest(detail string) *Error {
	return newError(KindInvalidRequest, "Invalid request", detail, nil)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// AsError extracts the domain error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
