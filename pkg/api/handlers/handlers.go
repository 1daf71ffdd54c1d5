// Package handlers implements the HTTP endpoints behind the auth and
// subscription middleware.
package handlers

import "errors"

// errMissingValidation means a route was registered without the Validate
// middleware its handler reads from.
var errMissingValidation = errors.New("handler: validated request not found in context")
