package errors

import (
	"fmt"
)

// ConfigurationError reports a malformed or inconsistent route table or
// plugin binding detected at startup. It is always fatal.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

// NewConfigurationError constructs a ConfigurationError.
func NewConfigurationError(field, message string, err error) error {
	return &ConfigurationError{Field: field, Message: message, Err: err}
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PluginLoadError reports that a named plugin failed to instantiate or
// start. Fatal unless the service runs in debug mode.
type PluginLoadError struct {
	Plugin string
	Err    error
}

// NewPluginLoadError constructs a PluginLoadError for the named plugin.
func NewPluginLoadError(plugin string, err error) error {
	return &PluginLoadError{Plugin: plugin, Err: err}
}

func (e *PluginLoadError) Error() string {
	if e == nil {
		return ""
	}
	if e.Plugin != "" {
		return fmt.Sprintf("plugin load error [%s]: %v", e.Plugin, e.Err)
	}
	return fmt.Sprintf("plugin load error: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *PluginLoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RoutingError reports a message whose phase resolves to no handler or
// route entry. Non-fatal; the message is dropped and counted.
type RoutingError struct {
	MsgID string
	Phase string
}

// NewRoutingError constructs a RoutingError.
func NewRoutingError(msgID, phase string) error {
	return &RoutingError{MsgID: msgID, Phase: phase}
}

func (e *RoutingError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("routing error: message %s has unknown phase %q", e.MsgID, e.Phase)
}

// HandlerError reports a failed handler invocation. Non-fatal to the
// pipeline; carries the message id for log correlation.
type HandlerError struct {
	MsgID string
	Phase string
	Err   error
}

// NewHandlerError constructs a HandlerError.
func NewHandlerError(msgID, phase string, err error) error {
	return &HandlerError{MsgID: msgID, Phase: phase, Err: err}
}

func (e *HandlerError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("handler error at phase %s for message %s: %v", e.Phase, e.MsgID, e.Err)
}

// Unwrap exposes the underlying error.
func (e *HandlerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
