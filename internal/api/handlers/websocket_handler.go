package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/metrics"
	"github.com/docmind/backend/internal/prompt"
	"github.com/docmind/backend/internal/query"
	"github.com/docmind/backend/internal/storage/sqlite"
	"github.com/docmind/backend/internal/stream"
	"github.com/docmind/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine    *query.Engine
	db        *sqlite.Client
	heartbeat time.Duration
}

func NewWebSocketHandler(engine *query.Engine, db *sqlite.Client, heartbeat time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		engine:    engine,
		db:        db,
		heartbeat: heartbeat,
	}
}

type wsMessage struct {
	Type           string   `json:"type"`
	Query          string   `json:"query"`
	UserID         string   `json:"user_id"`
	ConversationID string   `json:"conversation_id"`
	Scope          []string `json:"scope,omitempty"`
	AnswerLength   string   `json:"answer_length,omitempty"`
}

// wsConn is the subset of the websocket connection the read loop needs.
type wsConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// HandleConnection reads query messages off one websocket and streams each
// answer back through its own session. The read loop keeps running while a
// query is in flight so a disconnect or an explicit cancel message tears the
// active session down mid-stream.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")
	metrics.ActiveStreams.Inc()

	defer func() {
		metrics.ActiveStreams.Dec()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	h.serve(c)
}

func (h *WebSocketHandler) serve(c wsConn) {
	var (
		sess   *stream.Session
		cancel context.CancelFunc
	)
	stopActive := func() {
		if cancel != nil {
			cancel()
			cancel = nil
		}
		if sess != nil {
			sess.Cancel()
			sess = nil
		}
	}
	defer stopActive()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			logger.Info("WebSocket read ended", zap.Error(err))
			return
		}

		switch msg.Type {
		case "cancel":
			stopActive()

		case "query", "":
			if msg.Query == "" || msg.UserID == "" {
				// Every frame on the conn goes out through a session writer;
				// stopping the active session first keeps writers exclusive.
				stopActive()
				stream.NewSession(c, h.heartbeat).Fail("query and user_id are required")
				continue
			}

			// One answer at a time per connection.
			stopActive()

			ctx, cancelFn := context.WithCancel(context.Background())
			cancel = cancelFn
			sess = stream.NewSession(c, h.heartbeat)

			go h.runQuery(ctx, msg, sess)

		default:
			logger.Warn("Ignoring unknown WebSocket message type", zap.String("type", msg.Type))
		}
	}
}

func (h *WebSocketHandler) runQuery(ctx context.Context, msg wsMessage, sess *stream.Session) {
	req := query.Request{
		Query:          msg.Query,
		UserID:         msg.UserID,
		ConversationID: msg.ConversationID,
		Scope:          msg.Scope,
		AnswerLength:   prompt.ParseLength(msg.AnswerLength),
	}

	result, err := h.engine.AnswerStream(ctx, req, sess)
	if err != nil {
		logger.Error("Failed to stream answer", zap.Error(err))
		return
	}
	if result == nil {
		return
	}

	h.persistTurns(ctx, req, result.Answer)
}

func (h *WebSocketHandler) persistTurns(ctx context.Context, req query.Request, answer string) {
	if req.ConversationID == "" {
		return
	}
	if err := h.db.AppendTurn(ctx, req.ConversationID, "user", req.Query); err != nil {
		logger.Warn("Failed to persist user turn", zap.Error(err))
		return
	}
	if err := h.db.AppendTurn(ctx, req.ConversationID, "assistant", answer); err != nil {
		logger.Warn("Failed to persist assistant turn", zap.Error(err))
	}
}
