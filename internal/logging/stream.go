package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is one structured log line retained by the stream hub.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// StreamHub stores recent log events in a bounded ring buffer so the daemon
// can serve them back over IPC without touching log files.
type StreamHub struct {
	mu       sync.Mutex
	capacity int
	buffer   []LogEvent
	nextSeq  uint64
}

// NewStreamHub constructs a hub retaining up to capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{capacity: capacity}
}

// Publish appends an event, evicting the oldest entry when full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
}

// Snapshot returns up to limit most recent events at or above minLevel,
// oldest first. A limit <= 0 returns everything retained.
func (h *StreamHub) Snapshot(limit int, minLevel slog.Level) []LogEvent {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	filtered := make([]LogEvent, 0, len(h.buffer))
	for _, evt := range h.buffer {
		if ParseLevel(evt.Level) < minLevel {
			continue
		}
		filtered = append(filtered, evt)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// HubHandler mirrors records into a StreamHub while delegating to the next
// handler in the chain.
type HubHandler struct {
	next  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

// NewHubHandler wraps next so every record it accepts is also published.
func NewHubHandler(next slog.Handler, hub *StreamHub) *HubHandler {
	return &HubHandler{next: next, hub: hub}
}

// Enabled accepts every level: the hub retains all records so get_logs can
// serve lines below the console threshold. Delegation still honors the next
// handler's own level.
func (h *HubHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *HubHandler) Handle(ctx context.Context, record slog.Record) error {
	evt := LogEvent{
		Timestamp: record.Time.UTC(),
		Level:     strings.ToLower(levelLabel(record.Level)),
		Message:   record.Message,
	}
	collect := func(attr slog.Attr) {
		attr.Value = attr.Value.Resolve()
		if attr.Key == FieldComponent {
			evt.Component = attr.Value.String()
			return
		}
		if evt.Fields == nil {
			evt.Fields = make(map[string]string)
		}
		evt.Fields[attr.Key] = formatValue(attr.Value)
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(attr)
		return true
	})
	h.hub.Publish(evt)
	if !h.next.Enabled(ctx, record.Level) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *HubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &HubHandler{
		next:  h.next.WithAttrs(attrs),
		hub:   h.hub,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *HubHandler) WithGroup(name string) slog.Handler {
	return &HubHandler{next: h.next.WithGroup(name), hub: h.hub, attrs: h.attrs}
}
