// Package services defines the application-level persistence contract used by
// the dialog controller and the ops API. This file centralizes service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Translation into operator-visible text or HTTP status codes is performed by
// the caller (bot controller, transport loop or HTTP handlers).
package services

import "errors"

var (
	// ErrRequestNotFound indicates that no binding is correlated with the
	// given admin message id. It is a routing miss, not a failure.
	ErrRequestNotFound = errors.New("request not found")

	// ErrBindingNotFound is returned when message ids are attached to a
	// binding id that does not exist.
	ErrBindingNotFound = errors.New("binding not found")

	// ErrAlreadyAttached is returned when a binding already carries its
	// message ids; the attach is a one-time mutation.
	ErrAlreadyAttached = errors.New("message ids already attached")

	// ErrAdminMessageTaken is returned when another binding already holds the
	// admin message id, which would make reply routing ambiguous.
	ErrAdminMessageTaken = errors.New("admin message id already correlated")

	// ErrUserNotFound is returned when no user has the given external id.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidServer is returned when creating a request for a blank server.
	ErrInvalidServer = errors.New("server name is empty")
)
