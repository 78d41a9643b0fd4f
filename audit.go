package goAccounts

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goAccounts/internal/audit"
)

// AuditEvent is the record delivered to an AuditSink for every account
// mutation and authentication attempt.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's background dispatcher.
// Emit must not block for long; a slow sink causes events to be dropped when
// Audit.DropIfFull is set.
type AuditSink = audit.Sink

// NoOpSink discards every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON document per event.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs events through a *slog.Logger.
type SlogSink = audit.SlogSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a SlogSink. A nil logger uses slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}
