package command

import (
	"context"
	"encoding/json"
	"fmt"
)

// Failure reasons reported in Outcome.Reason.
const (
	ReasonHandlerNotFound  = "handler_not_found"
	ReasonHandlerException = "handler_exception"
)

// Meta carries caller context (subject, sender, message id, ...) through
// a dispatch untouched.
type Meta map[string]string

// Outcome is the uniform record produced by every dispatch attempt.
type Outcome struct {
	Handled       bool     `json:"handled"`
	Reason        string   `json:"reason,omitempty"`
	Command       string   `json:"command"`
	Args          []string `json:"args"`
	Meta          Meta     `json:"meta"`
	HandlerResult any      `json:"handler_result,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// MarshalJSON always emits handler_result for a handled outcome, null
// included, and never for a failed one.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	if !o.Handled {
		return json.Marshal(plain(o))
	}
	return json.Marshal(struct {
		plain
		HandlerResult any `json:"handler_result"`
	}{plain(o), o.HandlerResult})
}

// LogSink receives leveled log events with alternating key/value fields.
type LogSink interface {
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// Dispatcher invokes handlers from a Registry and converts whatever they
// do into an Outcome.
type Dispatcher struct {
	registry *Registry
	logger   LogSink
}

// NewDispatcher creates a dispatcher over reg that reports to logger.
func NewDispatcher(reg *Registry, logger LogSink) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger,
	}
}

// Dispatch runs the handler registered for cmd.Name. It blocks until the
// handler returns and never panics or returns an error; failures are
// reported through the Outcome.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	cmd Command,
	meta Meta,
) Outcome {
	d.logger.Info("COMMAND_HANDLE_START",
		"name", cmd.Name,
		"args", cmd.Args,
		"meta", meta,
	)

	result := Outcome{
		Command: cmd.Name,
		Args:    cmd.Args,
		Meta:    meta,
	}

	handler, ok := d.registry.Lookup(cmd.Name)
	if !ok {
		d.logger.Warn("COMMAND_HANDLER_NOT_FOUND", "name", cmd.Name)
		result.Reason = ReasonHandlerNotFound
		d.logger.Info("COMMAND_HANDLE_END", "result", result)
		return result
	}

	value, err := invoke(ctx, handler, cmd.Args)
	if err != nil {
		d.logger.Error("COMMAND_HANDLER_ERROR",
			"name", cmd.Name,
			"error", err.Error(),
		)
		result.Reason = ReasonHandlerException
		result.Error = err.Error()
	} else {
		result.Handled = true
		result.HandlerResult = value
	}

	d.logger.Info("COMMAND_HANDLE_END", "result", result)
	return result
}

// invoke calls h with args expanded, turning a panic into an error.
func invoke(
	ctx context.Context, h Handler, args []string,
) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	value, err = h(ctx, args...)
	if err != nil && err.Error() == "" {
		err = fmt.Errorf("handler failed: %T", err)
	}
	return value, err
}
