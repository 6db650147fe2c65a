package transport

import (
	"errors"
	"fmt"
	"net/http"

	orchestration "github.com/koscakluka/tutor-core/core"
	"github.com/koscakluka/tutor-core/core/events"
)

// SSEHandler answers a single question per request over Server-Sent Events.
// Question parameters come from the query string; the response is a stream of
// `data:` frames carrying the wire-encoded events.
type SSEHandler struct {
	registry *orchestration.Registry
}

func NewSSEHandler(registry *orchestration.Registry) *SSEHandler {
	return &SSEHandler{registry: registry}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "sse question")
	defer span.End()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	session, err := h.registry.GetOrCreate(query.Get("session_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stream, err := session.Ask(ctx, orchestration.AskRequest{
		Question:    query.Get("question"),
		Subject:     query.Get("subject"),
		GradeLevel:  query.Get("grade_level"),
		Language:    query.Get("language"),
		VoiceStyle:  query.Get("voice_style"),
		AvatarStyle: query.Get("avatar_style"),

		IncludeVisual: includeParam(query.Get("include_visual")),
		IncludeAudio:  includeParam(query.Get("include_audio")),
	})
	if err != nil {
		http.Error(w, err.Error(), askStatus(err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range stream {
		frame, err := events.MarshalWire(event)
		if err != nil {
			logger.Warn("failed to marshal event for sse", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			session.Cancel()
			for range stream {
			}
			return
		}
		flusher.Flush()
	}
}

// includeParam treats an absent modality parameter as enabled.
func includeParam(value string) bool {
	return value != "false" && value != "0"
}

func askStatus(err error) int {
	var sessionErr *orchestration.SessionError
	if errors.As(err, &sessionErr) {
		switch sessionErr.Kind {
		case orchestration.SessionBusy:
			return http.StatusConflict
		case orchestration.SessionNotFound:
			return http.StatusNotFound
		case orchestration.SessionClosedErr:
			return http.StatusGone
		}
	}
	if errors.Is(err, orchestration.ErrEmptyQuestion) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
