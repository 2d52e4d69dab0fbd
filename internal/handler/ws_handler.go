package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/middleware"
	"github.com/stemsi/exam-engine/internal/service"
	ws "github.com/stemsi/exam-engine/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the authoritative clock to connected candidates.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ClockStream godoc
// WS /ws/v1/attempts/:assessment_id/stream
// Pushes a tick event every second while the session is active and a final
// one when the phase changes. The server clock is the only clock the client
// should trust.
func (h *WSHandler) ClockStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assessment ID"})
		return
	}

	sess, err := h.sessions.Get(assessmentID, claims.CandidateID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no open session for this assessment"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("candidate_id", claims.CandidateID).
		Str("assessment_id", assessmentID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	subID, ticks := sess.Subscribe()

	// Writer goroutine: forwards tick events until the subscription or the
	// connection goes away. The read loop below owns connection teardown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ticks {
			payload := ws.TickResponse{
				Event:           ws.EventTick,
				Phase:           string(ev.Phase),
				TimeLeftSeconds: ev.TimeLeftSeconds,
			}
			if err := ws.WriteTyped(conn, payload); err != nil {
				wsLog.Debug().Err(err).Msg("Tick write failed")
				return
			}
		}
	}()

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionPing:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				wsLog.Debug().Err(err).Msg("Pong write failed")
			}
		default:
			_ = ws.WriteError(conn, "unknown action")
		}
	}

	// Closing the subscription ends the writer goroutine's range loop.
	sess.Unsubscribe(subID)
	<-done
	wsLog.Info().Msg("Candidate disconnected")
}
