package backend

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/obraviva/site-chat/pkg/log"
)

// Hub tracks connected sockets and the chats they joined.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	chats      map[string]map[string]*Client // chatID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *ChatBroadcast
	done       chan struct{}
	mu         sync.RWMutex
}

type ChatBroadcast struct {
	ChatID  string
	Message []byte
	Exclude string // Client ID to exclude
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		chats:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *ChatBroadcast, 256),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	l := log.L()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.closeSend()
			}
			h.chats = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for chatID, members := range h.chats {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.chats, chatID)
					}
				}
				delete(h.clients, client.ID)
				client.closeSend()
			}
			h.mu.Unlock()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for clientID, client := range h.chats[msg.ChatID] {
				if clientID == msg.Exclude {
					continue
				}
				if !client.enqueue(msg.Message) {
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) JoinChat(client *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.chats[chatID]; !ok {
		h.chats[chatID] = make(map[string]*Client)
	}
	h.chats[chatID][client.ID] = client
	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldChatID, chatID).Msg("client joined chat")
}

func (h *Hub) LeaveChat(client *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.chats[chatID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.chats, chatID)
		}
	}
	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldChatID, chatID).Msg("client left chat")
}

func (h *Hub) BroadcastToChat(chatID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.BroadcastRawToChat(chatID, data, exclude)
	return nil
}

// BroadcastRawToChat sends raw bytes to every socket joined to chatID.
func (h *Hub) BroadcastRawToChat(chatID string, data []byte, exclude string) {
	select {
	case h.broadcast <- &ChatBroadcast{ChatID: chatID, Message: data, Exclude: exclude}:
	case <-h.done:
	}
}

func (h *Hub) ChatClientCount(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats[chatID])
}

// DropAll closes every registered socket.
func (h *Hub) DropAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}
