package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates no actor is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the actor lacks the permission, role or ownership required.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the resource does not exist in any scope.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRole signals an unrecognised role reached the permission model.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidPatch indicates an update touched a field that cannot be patched.
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrTerminalWorkOrder indicates the work order is completed or cancelled.
	ErrTerminalWorkOrder = errors.New("work order is in a terminal state")
	// ErrInvalidRange indicates a date range whose start is after its end.
	ErrInvalidRange = errors.New("invalid date range")
)

// DenialError describes a rejected authorization decision.
type DenialError struct {
	Kind     error
	ActorID  string
	Action   string
	Resource string
}

func (e *DenialError) Error() string {
	if e.ActorID == "" {
		return fmt.Sprintf("%s: %s on %s", e.Kind, e.Action, e.Resource)
	}
	return fmt.Sprintf("%s: actor %s cannot %s on %s", e.Kind, e.ActorID, e.Action, e.Resource)
}

func (e *DenialError) Unwrap() error {
	return e.Kind
}

// Forbidden builds a DenialError of kind ErrForbidden.
func Forbidden(actorID, action, resource string) error {
	return &DenialError{Kind: ErrForbidden, ActorID: actorID, Action: action, Resource: resource}
}

// Unauthenticated builds a DenialError of kind ErrUnauthenticated.
func Unauthenticated(action, resource string) error {
	return &DenialError{Kind: ErrUnauthenticated, Action: action, Resource: resource}
}
