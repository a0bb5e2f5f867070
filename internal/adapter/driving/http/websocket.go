package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Wyydra/huddle/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/protocol"
	"github.com/Wyydra/huddle/internal/core/service"
	"github.com/Wyydra/huddle/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const teardownTimeout = 5 * time.Second

// ServeWS runs one control connection. The token, the session and the
// participant are all checked before the upgrade.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.conns.Add(1)
	defer h.conns.Done()

	claims, err := h.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		log.Debug().Err(err).Msg("Rejected control connection")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Detail: "Invalid streaming token"})
		return
	}

	l := log.With().
		Str("huddle_id", claims.SessionID.String()).
		Str("participant_id", claims.ParticipantID.String()).
		Logger()

	huddle, err := h.verse.Resolve(r.Context(), claims.SessionID)
	if err != nil {
		h.rejectLookup(w, l, err)
		return
	}
	if _, err := h.participants.Get(r.Context(), claims.ParticipantID); err != nil {
		h.rejectLookup(w, l, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("Error while upgrading ws")
		return
	}
	client := ws.NewClient(conn)

	participant, err := huddle.Connect(claims.ParticipantID, client)
	if err != nil {
		l.Warn().Err(err).Msg("Participant already connected")
		_ = client.CloseWith(websocket.ClosePolicyViolation, "already connected")
		return
	}

	metrics.ControlConnections.Inc()
	l.Info().Msg("Control connection accepted")

	ctx := r.Context()
	ctrl, err := service.NewControlHandler(ctx, participant, h.media)
	if err != nil {
		l.Error().Err(err).Msg("Failed to start control handler")
		h.teardown(l, nil, participant, client)
		return
	}
	defer h.teardown(l, ctrl, participant, client)

	if err := ctrl.BeginHandshake(ctx); err != nil {
		l.Error().Err(err).Msg("Handshake failed")
		_ = client.CloseWith(websocket.CloseInternalServerErr, "handshake failed")
		return
	}

	h.readLoop(ctx, l, client, ctrl)
}

func (h *Handler) readLoop(ctx context.Context, l zerolog.Logger, client *ws.Client, ctrl *service.ControlHandler) {
	for {
		raw, err := client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			return
		}

		msg, err := protocol.DecodeClientMessage(raw)
		if err != nil {
			l.Warn().Err(err).Msg("Invalid client message")
			_ = client.CloseWith(websocket.CloseInvalidFramePayloadData, "invalid message")
			return
		}

		if err := ctrl.HandleMessage(ctx, msg); err != nil {
			if errors.Is(err, domain.ErrCloseRequested) {
				_ = client.CloseWith(websocket.CloseNormalClosure, "")
				return
			}
			l.Error().Err(err).Str("type", string(msg.Kind())).Msg("Failed to handle client message")
			_ = client.CloseWith(websocket.CloseInternalServerErr, "internal error")
			return
		}
	}
}

// teardown releases the connection and removes the participant from the
// store, which tells every worker that the member left.
func (h *Handler) teardown(l zerolog.Logger, ctrl *service.ControlHandler, participant *service.Participant, client *ws.Client) {
	if ctrl != nil {
		if err := ctrl.Close(); err != nil {
			l.Error().Err(err).Msg("Event relay failed")
		}
	}
	participant.Detach(client)
	_ = client.Close()
	metrics.ControlConnections.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	huddle := participant.Huddle()
	if err := h.participants.Delete(ctx, huddle.ID(), participant.ID()); err != nil {
		l.Error().Err(err).Msg("Failed to remove participant")
	}
	l.Info().Msg("Client disconnected")
}

func (h *Handler) rejectLookup(w http.ResponseWriter, l zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrParticipantNotFound):
		l.Debug().Err(err).Msg("Rejected control connection")
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: huddleNotFound})
	default:
		l.Error().Err(err).Msg("Failed to resolve control connection")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal error"})
	}
}
