// Package transport exposes teaching sessions over WebSocket and SSE. The
// orchestration core emits events as fast as producers allow; the transport
// decides whether to replay them in real time (honoring pacing hints) or to
// flush them immediately.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	orchestration "github.com/koscakluka/tutor-core/core"
	"github.com/koscakluka/tutor-core/core/events"
)

type clientCommand struct {
	Type        string `json:"type"`
	Question    string `json:"question,omitempty"`
	Subject     string `json:"subject,omitempty"`
	GradeLevel  string `json:"grade_level,omitempty"`
	Language    string `json:"language,omitempty"`
	VoiceStyle  string `json:"voice_style,omitempty"`
	AvatarStyle string `json:"avatar_style,omitempty"`

	// nil means the client did not choose; both modalities default on
	IncludeVisual *bool `json:"include_visual,omitempty"`
	IncludeAudio  *bool `json:"include_audio,omitempty"`
}

type connectedFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// WebSocketHandler serves the interactive session protocol: the client joins
// (or creates) a session, asks questions and receives the event stream over
// the same connection.
type WebSocketHandler struct {
	registry *orchestration.Registry
	upgrader websocket.Upgrader

	// realTime makes the writer honor text pacing hints with actual sleeps.
	realTime bool
}

type WebSocketOption func(*WebSocketHandler)

// WithRealTimePacing makes the handler sleep out each text event's delay
// hint, reproducing a live lecture over the socket.
func WithRealTimePacing(enabled bool) WebSocketOption {
	return func(h *WebSocketHandler) {
		h.realTime = enabled
	}
}

func NewWebSocketHandler(registry *orchestration.Registry, opts ...WebSocketOption) *WebSocketHandler {
	h := &WebSocketHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "websocket session")
	defer span.End()

	session, err := h.registry.GetOrCreate(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	writer := &connWriter{conn: conn}
	if err := writer.writeJSON(connectedFrame{Type: "connected", SessionID: session.ID()}); err != nil {
		return
	}

	logger.DebugContext(ctx, "websocket client joined", "session_id", session.ID())

	for {
		var command clientCommand
		if err := conn.ReadJSON(&command); err != nil {
			session.Cancel()
			return
		}

		switch command.Type {
		case "ask_question":
			h.handleAsk(ctx, session, writer, command)
		case "cancel":
			session.Cancel()
		case "close_session":
			h.registry.Remove(session.ID())
			return
		default:
			writer.writeEvent(events.NewError(events.ErrorInvalidInput, "unknown command type", true), false)
		}
	}
}

func (h *WebSocketHandler) handleAsk(ctx context.Context, session *orchestration.Session, writer *connWriter, command clientCommand) {
	stream, err := session.Ask(ctx, orchestration.AskRequest{
		Question:    command.Question,
		Subject:     command.Subject,
		GradeLevel:  command.GradeLevel,
		Language:    command.Language,
		VoiceStyle:  command.VoiceStyle,
		AvatarStyle: command.AvatarStyle,

		IncludeVisual: includeFlag(command.IncludeVisual),
		IncludeAudio:  includeFlag(command.IncludeAudio),
	})
	if err != nil {
		writer.writeEvent(askError(err), false)
		return
	}

	// stream in the background so cancel commands stay readable
	go func() {
		for event := range stream {
			if !writer.writeEvent(event, h.realTime) {
				session.Cancel()
				for range stream {
				}
				return
			}
		}
	}()
}

func includeFlag(value *bool) bool {
	return value == nil || *value
}

// askError maps synchronous Ask failures to advisory wire errors.
func askError(err error) events.Error {
	var sessionErr *orchestration.SessionError
	if errors.As(err, &sessionErr) {
		switch sessionErr.Kind {
		case orchestration.SessionBusy:
			return events.NewError(events.ErrorSessionBusy, "a question is already being answered", true)
		case orchestration.SessionNotFound:
			return events.NewError(events.ErrorSessionNotFound, "unknown session", true)
		}
	}
	return events.NewError(events.ErrorInvalidInput, err.Error(), true)
}

// connWriter serializes all writes on a connection. Gorilla connections only
// support one concurrent writer.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.conn.WriteJSON(v)
}

func (w *connWriter) writeEvent(event events.Event, paced bool) bool {
	frame, err := events.MarshalWire(event)
	if err != nil {
		logger.Warn("failed to marshal event for wire", "error", err)
		return true
	}

	w.mu.Lock()
	err = w.conn.WriteMessage(websocket.TextMessage, frame)
	w.mu.Unlock()
	if err != nil {
		return false
	}

	if paced {
		if text, ok := event.(events.Text); ok && text.Delay > 0 {
			time.Sleep(text.Delay)
		}
	}
	return true
}

