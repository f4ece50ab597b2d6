package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream failure")
)

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, "field '"+k+"' "+e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Upstream marks err as a failure of an external collaborator.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	return &upstreamError{service: service, err: err}
}

type upstreamError struct {
	service string
	err     error
}

func (e *upstreamError) Error() string { return e.service + ": " + e.err.Error() }

func (e *upstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *upstreamError) Unwrap() error { return e.err }
