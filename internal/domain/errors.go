// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates invalid input. Wrap with details.
var ErrValidation = errors.New("validation failed")

// ErrInvalidState indicates an operation was attempted against a task that is
// not in the status the operation requires (e.g. claiming a non-inbox task).
var ErrInvalidState = errors.New("invalid task state")

// ErrSkillMismatch indicates a claim was attempted by an agent that lacks one
// or more of the task's required skills.
var ErrSkillMismatch = errors.New("agent lacks required skills")

// ErrUnauthorized indicates the acting agent is not allowed to perform the
// operation (e.g. proposing tasks without proposal rights).
var ErrUnauthorized = errors.New("not authorized")
