// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides an slog handler that copies WARN and ERROR records
// into the events table as an audit trail.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/quill/internal/model"
	"github.com/olegiv/quill/internal/store"
)

const writeTimeout = 2 * time.Second

// EventWriter persists audit events. *store.Queries implements it.
type EventWriter interface {
	CreateEvent(ctx context.Context, arg store.CreateEventParams) error
}

// EventLogHandler wraps another handler and additionally writes records at
// or above its level to the event log. The "category" and "username"
// attributes fill their own columns; every other attribute goes to metadata.
type EventLogHandler struct {
	inner  slog.Handler
	events EventWriter
	level  slog.Level
	attrs  []slog.Attr
	group  string
}

// NewEventLogHandler forwards WARN and above to events.
func NewEventLogHandler(inner slog.Handler, events EventWriter) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, events, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, events EventWriter, level slog.Level) *EventLogHandler {
	return &EventLogHandler{inner: inner, events: events, level: level}
}

func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.writeToEventLog(ctx, r)
	}
	return nil
}

func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), h.qualify(attrs)...)
	return &clone
}

func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (h *EventLogHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
	}
	return out
}

// writeToEventLog stores r. A failed write is reported to the inner handler
// only, so it never reaches the event log again.
func (h *EventLogHandler) writeToEventLog(ctx context.Context, r slog.Record) {
	event := store.CreateEventParams{
		Level:     eventLevel(r.Level),
		Message:   r.Message,
		CreatedAt: r.Time,
	}
	metadata := make(map[string]any)

	collect := func(a slog.Attr) {
		switch a.Key {
		case "category":
			event.Category = a.Value.String()
		case "username":
			event.Username = a.Value.String()
		default:
			if a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					metadata[a.Key] = err.Error()
					return
				}
			}
			metadata[a.Key] = a.Value.Resolve().Any()
		}
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		collect(a)
		return true
	})

	if event.Category == "" {
		event.Category = inferCategory(r.Message)
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			event.Metadata = string(b)
		}
	}

	// Detached from the request: a cancelled client must not lose the record.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := h.events.CreateEvent(wctx, event); err != nil {
		h.reportWriteFailure(ctx, r, err)
	}
}

func (h *EventLogHandler) reportWriteFailure(ctx context.Context, r slog.Record, err error) {
	if !h.inner.Enabled(ctx, slog.LevelError) {
		return
	}
	failure := slog.NewRecord(time.Now(), slog.LevelError, "event log write failed", 0)
	failure.AddAttrs(
		slog.String("error", err.Error()),
		slog.String("event_message", r.Message),
	)
	_ = h.inner.Handle(ctx, failure)
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// inferCategory guesses a category for records that carry none.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "login") || strings.Contains(msg, "auth") ||
		strings.Contains(msg, "access") || strings.Contains(msg, "identity"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "article"):
		return model.EventCategoryArticle
	case strings.Contains(msg, "user"):
		return model.EventCategoryUser
	default:
		return model.EventCategorySystem
	}
}
