// Package validation provides common validation utilities for configuration
// parameters across the goloop library.
//
// Every helper returns a *errors.ValidationError so constructors can report
// the module, field and offending value in one consistent shape.
package validation
