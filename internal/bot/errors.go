package bot

import "errors"

// ErrHandlerPanic wraps a panic recovered at the controller boundary.
var ErrHandlerPanic = errors.New("handler panic")
