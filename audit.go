// audit.go: Privacy-classified audit sink for operation outcomes.
//
// The engine reports every operation to an injected Logger. Events carry
// structured, sensitivity-tagged context so the sink can redact according to
// its own trust level; secret bytes never reach an event in any form beyond
// a fingerprint tagged SensitivitySensitive.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"log/slog"
	"time"
)

// Event is a single audit record for one performed operation.
type Event struct {
	// Timestamp is when the operation completed.
	Timestamp time.Time `json:"timestamp"`

	// Action is the operation kind performed.
	Action string `json:"action"`

	// KeyID is the opaque key identifier involved, if any. Identifiers are
	// public-safe; the material they name is not.
	KeyID string `json:"key_id,omitempty"`

	// Success reports whether the operation succeeded.
	Success bool `json:"success"`

	// Error is the failure description, empty on success.
	Error string `json:"error,omitempty"`

	// Fields is the classified context attached to the outcome.
	Fields []Field `json:"fields,omitempty"`
}

// Logger is the pluggable audit sink. Implementations must tolerate
// concurrent calls and must never log Field values above their trust level.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards every event. It is the default sink.
type NoopLogger struct{}

// Log implements Logger.
func (NoopLogger) Log(Event) {}

// SlogLogger writes events through a log/slog logger, redacting fields whose
// sensitivity exceeds the configured ceiling.
type SlogLogger struct {
	logger *slog.Logger
	max    Sensitivity
}

// NewSlogLogger wraps a slog logger as an audit sink. Fields classified
// above max are emitted with a redacted value so the record stays complete
// without leaking.
func NewSlogLogger(logger *slog.Logger, max Sensitivity) *SlogLogger {
	return &SlogLogger{logger: logger, max: max}
}

// Log implements Logger.
func (l *SlogLogger) Log(event Event) {
	attrs := make([]any, 0, 8+2*len(event.Fields))
	attrs = append(attrs,
		slog.Time("timestamp", event.Timestamp),
		slog.String("action", event.Action),
		slog.Bool("success", event.Success),
	)
	if event.KeyID != "" {
		attrs = append(attrs, slog.String("key_id", event.KeyID))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	for _, field := range event.Fields {
		value := field.Value
		if field.Sensitivity > l.max {
			value = "[redacted]"
		}
		attrs = append(attrs, slog.String(field.Key, value))
	}

	if event.Success {
		l.logger.Info("crypto operation", attrs...)
	} else {
		l.logger.Warn("crypto operation failed", attrs...)
	}
}
