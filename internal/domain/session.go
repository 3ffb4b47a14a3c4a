package domain

import "time"

// Role of a user in the construction company application.
type Role string

const (
	RoleClient  Role = "client"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Participant is one side of a chat.
type Participant struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
}

// ChatSession identifies one chat between a client and the manager
// assigned to a project. Clients only ever read it.
type ChatSession struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	Client    Participant `json:"client"`
	Manager   Participant `json:"manager"`
	CreatedAt time.Time   `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two parties.
func (s ChatSession) HasParticipant(userID string) bool {
	return userID != "" && (s.Client.UserID == userID || s.Manager.UserID == userID)
}

// Counterpart returns the party that is not userID.
func (s ChatSession) Counterpart(userID string) Participant {
	if s.Client.UserID == userID {
		return s.Manager
	}
	return s.Client
}

// ChatSummary is one chat-list entry.
type ChatSummary struct {
	Chat        ChatSession `json:"chat"`
	UnreadCount int         `json:"unread_count"`
	LastMessage *Message    `json:"last_message,omitempty"`
}
