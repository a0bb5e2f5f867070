package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const huddleNotFound = "Huddle not found or expired"

type Handler struct {
	admission    *service.AdmissionService
	verse        *service.Verse
	participants port.ParticipantRepository
	tokens       port.TokenVerifier
	media        port.MediaServer
	upgrader     websocket.Upgrader

	// conns counts control connections that have not finished teardown.
	conns sync.WaitGroup
}

// NewHandler builds the HTTP surface. An empty allowedOrigins accepts any
// origin on the control endpoint.
func NewHandler(
	admission *service.AdmissionService,
	verse *service.Verse,
	participants port.ParticipantRepository,
	tokens port.TokenVerifier,
	media port.MediaServer,
	allowedOrigins []string,
) *Handler {
	return &Handler{
		admission:    admission,
		verse:        verse,
		participants: participants,
		tokens:       tokens,
		media:        media,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/huddles", h.CreateHuddle)
	r.Post("/huddles/{id}/join", h.JoinHuddle)
	r.Get("/ws", h.ServeWS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// WaitConnections blocks until every control connection has finished its
// teardown or ctx is done.
func (h *Handler) WaitConnections(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type joinResponse struct {
	OK             bool                 `json:"ok"`
	HuddleID       domain.SessionID     `json:"huddleId"`
	ParticipantID  domain.ParticipantID `json:"participantId"`
	Role           domain.Role          `json:"role"`
	HuddleExpiry   string               `json:"huddleExpiry,omitempty"`
	StreamingToken string               `json:"streamingToken"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *Handler) CreateHuddle(w http.ResponseWriter, r *http.Request) {
	a, err := h.admission.Create(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create huddle")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Failed to create huddle"})
		return
	}
	writeJSON(w, http.StatusOK, newJoinResponse(a))
}

func (h *Handler) JoinHuddle(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(chi.URLParam(r, "id"))

	a, err := h.admission.Join(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: huddleNotFound})
		return
	case err != nil:
		log.Error().Err(err).Str("huddle_id", id.String()).Msg("Failed to join huddle")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Failed to join huddle"})
		return
	}
	writeJSON(w, http.StatusOK, newJoinResponse(a))
}

// newJoinResponse omits huddleExpiry for sessions that never expire.
func newJoinResponse(a service.Admission) joinResponse {
	resp := joinResponse{
		OK:             true,
		HuddleID:       a.Session.ID,
		ParticipantID:  a.Participant.ID,
		Role:           a.Participant.Role,
		StreamingToken: a.Token,
	}
	if a.Session.Expires() {
		resp.HuddleExpiry = a.Session.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}
