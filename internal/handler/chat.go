package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/neria/manager/internal/chat"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/pkg/logger"
)

const HeaderChatUserID = "X-Chat-User-Id"

// Websocket keep-alive defaults.
const (
	pingPeriod = 15 * time.Second
	readWait   = pingPeriod + 10*time.Second
	writeWait  = 10 * time.Second
)

type ChatService interface {
	CreateConversation(ctx context.Context, tenantID, userID, apiKeyID string, req chat.CreateConversationRequest) (*model.ChatConversation, error)
	ListConversations(ctx context.Context, tenantID, userID string) ([]*model.ChatConversation, error)
	ListMessages(ctx context.Context, tenantID, userID, conversationID string) ([]*model.ChatMessage, error)
	AddMessage(ctx context.Context, tenantID, userID, apiKeyID, conversationID, content string) (*chat.AddMessageResult, error)
}

type ChatHandler struct {
	svc      ChatService
	upgrader websocket.Upgrader

	pingPeriod time.Duration
	readWait   time.Duration
	writeWait  time.Duration
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{
		svc:        svc,
		pingPeriod: pingPeriod,
		readWait:   readWait,
		writeWait:  writeWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

type addMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// chatUser returns the tenant and the end user the request acts for.
func chatUser(c *gin.Context) (*model.Tenant, string, bool) {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil, "", false
	}
	userID := strings.TrimSpace(c.GetHeader(HeaderChatUserID))
	if userID == "" {
		_ = c.Error(apperrors.BadRequest(HeaderChatUserID+" header is required", nil))
		return nil, "", false
	}
	return tenant, userID, true
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	tenant, userID, ok := chatUser(c)
	if !ok {
		return
	}
	var req chat.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request body", err))
		return
	}
	conv, err := h.svc.CreateConversation(c.Request.Context(), tenant.ID, userID, apiKeyID(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	tenant, userID, ok := chatUser(c)
	if !ok {
		return
	}
	convs, err := h.svc.ListConversations(c.Request.Context(), tenant.ID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if convs == nil {
		convs = []*model.ChatConversation{}
	}
	c.JSON(http.StatusOK, convs)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	tenant, userID, ok := chatUser(c)
	if !ok {
		return
	}
	msgs, err := h.svc.ListMessages(c.Request.Context(), tenant.ID, userID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if msgs == nil {
		msgs = []*model.ChatMessage{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) AddMessage(c *gin.Context) {
	tenant, userID, ok := chatUser(c)
	if !ok {
		return
	}
	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("content is required", err))
		return
	}
	res, err := h.svc.AddMessage(c.Request.Context(), tenant.ID, userID, apiKeyID(c), c.Param("id"), req.Content)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// wsFrame is one server to client websocket message.
type wsFrame struct {
	Type   string                 `json:"type"` // "reply" or "error"
	Result *chat.AddMessageResult `json:"result,omitempty"`
	Error  *apperrors.AppError    `json:"error,omitempty"`
}

// Stream upgrades to a websocket on which every text frame {"content": "..."}
// is handled like a posted message. Turns are processed in order.
func (h *ChatHandler) Stream(c *gin.Context) {
	tenant, userID, ok := chatUser(c)
	if !ok {
		return
	}
	convID := c.Param("id")
	// Ownership is checked before the upgrade so failures get a plain HTTP error.
	if _, err := h.svc.ListMessages(c.Request.Context(), tenant.ID, userID, convID); err != nil {
		_ = c.Error(err)
		return
	}
	keyID := apiKeyID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.FromContext(c.Request.Context()).Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()
	log := logger.FromContext(ctx).With("tenant_id", tenant.ID, "conversation_id", convID)

	var writeMu sync.Mutex
	write := func(messageType int, v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if v == nil {
			return conn.WriteMessage(messageType, nil)
		}
		return conn.WriteJSON(v)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readWait))
	})

	go func() {
		ticker := time.NewTicker(h.pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		// The deadline only covers idle time between turns; pongs extend it.
		_ = conn.SetReadDeadline(time.Now().Add(h.readWait))
		var req addMessageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("chat websocket closed", "error", err.Error())
			}
			return
		}
		// Nothing reads while the turn runs, so pongs cannot extend the deadline.
		_ = conn.SetReadDeadline(time.Time{})

		res, err := h.svc.AddMessage(ctx, tenant.ID, userID, keyID, convID, req.Content)
		frame := wsFrame{Type: "reply", Result: res}
		if err != nil {
			frame = wsFrame{Type: "error", Error: apperrors.Wrap(err)}
		}
		if err := write(websocket.TextMessage, frame); err != nil {
			log.Warn("chat websocket write failed", "error", err.Error())
			return
		}
	}
}
