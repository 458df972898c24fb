package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("transient io failure")
	ErrValidation   = errors.New("validation failed")
	ErrEmptyContent = errors.New("empty content")
)

// ConfigurationError means the active provider or model cannot be resolved.
// It is fatal for the operation that hit it and is reported before any
// network call is made.
type ConfigurationError struct {
	Component string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Component, e.Message)
}

func NewConfigurationError(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
