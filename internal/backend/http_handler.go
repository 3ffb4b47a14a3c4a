package backend

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/jwt"
	"github.com/obraviva/site-chat/pkg/middleware"
	"github.com/obraviva/site-chat/pkg/response"
)

type HTTPHandler struct {
	service *ChatService
	tokens  *jwt.Manager
	auth    *middleware.AuthMiddleware
}

func NewHTTPHandler(service *ChatService, tokens *jwt.Manager) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		tokens:  tokens,
		auth:    middleware.NewAuthMiddleware(tokens),
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/dev/token", h.IssueToken)

		chats := api.Group("/chats", h.auth.RequireAuth())
		chats.GET("", h.ListChats)
		chats.GET("/:chat_id/messages", h.GetMessages)
		chats.POST("/:chat_id/messages", h.SendMessage)
		chats.POST("/:chat_id/read", h.MarkRead)
	}

	r.GET("/health", h.HealthCheck)
}

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// IssueToken hands out session tokens for local development.
func (h *HTTPHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id and role are required")
		return
	}
	if !domain.Role(req.Role).Valid() {
		response.BadRequest(c, "unknown role")
		return
	}

	token, expiresAt, err := h.tokens.Issue(req.UserID, req.UserID, req.Role)
	if err != nil {
		response.InternalError(c, "failed to issue token")
		return
	}
	response.Success(c, gin.H{"token": token, "expires_at": expiresAt})
}

func (h *HTTPHandler) ListChats(c *gin.Context) {
	chats, err := h.service.ListChats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if chats == nil {
		chats = []domain.ChatSummary{}
	}
	response.Success(c, gin.H{"chats": chats})
}

func (h *HTTPHandler) GetMessages(c *gin.Context) {
	chat, msgs, err := h.service.History(c.Request.Context(), c.Param("chat_id"), middleware.GetUserID(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	response.Success(c, gin.H{"chat": chat, "messages": msgs})
}

type sendRequest struct {
	Body string `json:"body"`
}

func (h *HTTPHandler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	m, err := h.service.SendMessage(c.Request.Context(), c.Param("chat_id"), middleware.GetUserID(c), req.Body)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	response.Created(c, gin.H{"message": m})
}

type readRequest struct {
	MessageID domain.MessageID `json:"message_id"`
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	var req readRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}

	updated, err := h.service.MarkRead(c.Request.Context(), c.Param("chat_id"), middleware.GetUserID(c), req.MessageID)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrChatNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotMember):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrEmptyBody):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, "internal error")
	}
}
