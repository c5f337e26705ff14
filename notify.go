package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Handler handles an MCP notification
type Handler func(method string, params json.RawMessage) error

// Dispatcher routes notifications to subscribed handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// List change notification methods
const (
	MethodResourceListChanged = "notifications/resources/list_changed"
	MethodToolListChanged     = "notifications/tools/list_changed"
)

// Logging notification method
const MethodLogging = "notifications/message"

// MethodInitialized is sent by the client once initialize completes.
const MethodInitialized = "notifications/initialized"

// NewDispatcher creates a new notification dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
	}
}

// Handle registers a handler for a notification method
func (d *Dispatcher) Handle(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = append(d.handlers[method], h)
}

// Dispatch sends a notification to every registered handler. All handlers
// run even if one fails.
func (d *Dispatcher) Dispatch(method string, params json.RawMessage) error {
	d.mu.RLock()
	handlers := d.handlers[method]
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(method, params); err != nil {
			errs = append(errs, fmt.Errorf("handler error: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NotifyListChanged dispatches a list change notification.
func (d *Dispatcher) NotifyListChanged(method string) error {
	return d.Dispatch(method, nil)
}

// LogMessage is the payload of a notifications/message notification.
type LogMessage struct {
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitempty"`
	Data   any          `json:"data"`
}

// NotifyLoggingMessage dispatches a log message notification.
func (d *Dispatcher) NotifyLoggingMessage(level LoggingLevel, logger string, data any) error {
	msg, err := json.Marshal(LogMessage{
		Level:  level,
		Logger: logger,
		Data:   data,
	})
	if err != nil {
		return err
	}
	return d.Dispatch(MethodLogging, msg)
}
