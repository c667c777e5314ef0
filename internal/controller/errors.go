package controller

import "errors"

// ErrNotFound is returned when a request names a controller that does not
// exist.
var ErrNotFound = errors.New("no such controller")
