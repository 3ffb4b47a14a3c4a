package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/obraviva/site-chat/internal/config"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub     *Hub
	service *ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *Hub, svc *ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage, func(c *Client) {
		h.service.HandleDisconnect(context.Background(), c)
	})
}

func (h *WSHandler) handleMessage(client *Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	l := log.L().With().Str(log.FieldClientID, client.ID).Str(log.FieldEventType, base.Type).Logger()
	ctx := log.WithLogger(context.Background(), l)

	switch base.Type {
	case domain.MsgTypeAuth:
		var msg domain.AuthMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid auth message"))
			return
		}
		if err := h.service.HandleAuth(ctx, client, msg.Token); err != nil {
			l.Warn().Err(err).Msg("auth failed")
		}

	case domain.MsgTypeJoinChat:
		var msg domain.JoinChatMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_chat message"))
			return
		}
		if err := h.service.HandleJoinChat(ctx, client, msg.ChatID); err != nil {
			l.Warn().Err(err).Str(log.FieldChatID, msg.ChatID).Msg("join chat failed")
		}

	case domain.MsgTypeLeaveChat:
		var msg domain.LeaveChatMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave_chat message"))
			return
		}
		if err := h.service.HandleLeaveChat(ctx, client, msg.ChatID); err != nil {
			l.Warn().Err(err).Msg("leave chat failed")
		}

	case domain.MsgTypeTypingStart, domain.MsgTypeTypingStop:
		var msg domain.TypingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid typing message"))
			return
		}
		if err := h.service.HandleTyping(ctx, client, msg.ChatID, base.Type == domain.MsgTypeTypingStart); err != nil {
			l.Debug().Err(err).Msg("typing relay failed")
		}

	case domain.MsgTypeReadReceipt:
		var msg domain.ReadReceiptMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid read_receipt message"))
			return
		}
		if err := h.service.HandleReadReceipt(ctx, client, msg.ChatID, msg.MessageID); err != nil {
			l.Debug().Err(err).Msg("read receipt relay failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}
