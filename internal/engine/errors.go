package engine

import (
	"fmt"
	"net/http"
)

// ErrorKind is the public error classification carried in the response
// envelope's "results" field on failure.
type ErrorKind string

const (
	// ErrProjectNotFound: no project exists for the id in the path.
	ErrProjectNotFound ErrorKind = "ProjectNotFoundError"
	// ErrNoCredentials: neither readKey nor masterKey was supplied.
	ErrNoCredentials ErrorKind = "NoCredentialsSentError"
	// ErrKeyNotAuthorized: a key was supplied but matches neither the
	// project's readKey nor its masterKey.
	ErrKeyNotAuthorized ErrorKind = "KeyNotAuthorizedError"
	// ErrTargetNotProvided: the archetype requires target_property,
	// percentile, or outliers_in and it is absent.
	ErrTargetNotProvided ErrorKind = "TargetNotProvidedError"
	// ErrBadQuery: the query could not be compiled or executed. Carries
	// a message.
	ErrBadQuery ErrorKind = "BadQueryError"
)

// QueryError is the engine's failure type. Every request-level failure
// is one of the five kinds above; nothing is fatal to the process.
type QueryError struct {
	Kind    ErrorKind
	Message string
}

func (e *QueryError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatus maps the error kind to its response status.
func (e *QueryError) HTTPStatus() int {
	switch e.Kind {
	case ErrProjectNotFound:
		return http.StatusNotFound
	case ErrNoCredentials:
		return http.StatusForbidden
	case ErrKeyNotAuthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func errKind(kind ErrorKind) *QueryError {
	return &QueryError{Kind: kind}
}

func badQuery(format string, args ...any) *QueryError {
	return &QueryError{Kind: ErrBadQuery, Message: fmt.Sprintf(format, args...)}
}
