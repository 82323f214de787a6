// Package bootstrap implements the one-shot router provisioning
// workflow: endpoint planning, account provisioning, configuration
// generation and the idempotent directory deployment.
package bootstrap

import "fmt"

// ConfigError is a bad option value, detected before any I/O happens.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// AccountError is a failure to create or remove the router's database
// account after all fallbacks and retries are exhausted.
type AccountError struct {
	msg string
}

func (e *AccountError) Error() string { return e.msg }

func accountErrorf(format string, args ...any) *AccountError {
	return &AccountError{msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a target directory holding a deployment with a
// different identity, without --force given.
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string { return e.msg }

func conflictErrorf(format string, args ...any) *ConflictError {
	return &ConflictError{msg: fmt.Sprintf(format, args...)}
}
