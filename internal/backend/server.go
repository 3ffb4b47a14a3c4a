// Package backend is a development chat backend: REST endpoints for chat
// listing, history, send and mark-as-read, plus the websocket channel that
// pushes new messages, typing and read receipts. Tests run it in-process.
package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obraviva/site-chat/internal/config"
	"github.com/obraviva/site-chat/pkg/jwt"
	"github.com/obraviva/site-chat/pkg/log"
	"github.com/obraviva/site-chat/pkg/pubsub"
)

type Options struct {
	WebSocket config.WebSocketConfig
	JWT       config.JWTConfig
	// Bus defaults to an in-process bus, Store to an in-memory one.
	Bus   pubsub.PubSub
	Store Repository
}

type Server struct {
	engine  *gin.Engine
	hub     *Hub
	service *ChatService
	tokens  *jwt.Manager
	store   Repository
	bus     pubsub.PubSub
}

func New(opts Options) (*Server, error) {
	tokens, err := jwt.NewManager(opts.JWT.Secret, opts.JWT.TTL, opts.JWT.Issuer)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	if opts.Bus == nil {
		opts.Bus = pubsub.NewMemoryPubSub()
	}
	ws := withWebSocketDefaults(opts.WebSocket)

	hub := NewHub()
	svc := NewChatService(hub, opts.Store, tokens, opts.Bus)

	engine := gin.New()
	engine.Use(gin.Recovery(), log.GinMiddleware(log.L()))
	NewHTTPHandler(svc, tokens).RegisterRoutes(engine)
	engine.GET("/chat/ws", gin.WrapF(NewWSHandler(hub, svc, ws).HandleWebSocket))

	return &Server{
		engine:  engine,
		hub:     hub,
		service: svc,
		tokens:  tokens,
		store:   opts.Store,
		bus:     opts.Bus,
	}, nil
}

func withWebSocketDefaults(ws config.WebSocketConfig) config.WebSocketConfig {
	if ws.PingInterval <= 0 {
		ws.PingInterval = 30 * time.Second
	}
	if ws.PongWait <= 0 {
		ws.PongWait = 60 * time.Second
	}
	if ws.WriteWait <= 0 {
		ws.WriteWait = 10 * time.Second
	}
	if ws.MaxMessageSize <= 0 {
		ws.MaxMessageSize = 65536
	}
	return ws
}

// Start runs the hub and the bus relay until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	return s.service.Relay(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Tokens() *jwt.Manager {
	return s.tokens
}

func (s *Server) Store() Repository {
	return s.store
}

func (s *Server) Service() *ChatService {
	return s.service
}

func (s *Server) Close() error {
	return s.bus.Close()
}

// ConnectedClients reports how many sockets joined chatID.
func (s *Server) ConnectedClients(chatID string) int {
	return s.hub.ChatClientCount(chatID)
}

// DropConnections closes every open socket, as a backend restart would.
func (s *Server) DropConnections() {
	s.hub.DropAll()
}
