package backend

import (
	"context"
	"time"

	"github.com/obraviva/site-chat/internal/domain"
)

// Seed identifiers for the development data set.
const (
	SeedChatID    = "C1"
	SeedProjectID = "P1"
	SeedClientID  = "U1"
	SeedManagerID = "U2"
)

// Seed loads one project chat between client U1 and manager U2 with a
// single unread greeting from the manager, plus a second chat of U2 that
// U1 is not part of.
func Seed(ctx context.Context, r Repository) error {
	created := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	err := r.PutChat(ctx, domain.ChatSession{
		ID:        SeedChatID,
		ProjectID: SeedProjectID,
		Client:    domain.Participant{UserID: SeedClientID, Name: "Lucía Ramos", Role: domain.RoleClient},
		Manager:   domain.Participant{UserID: SeedManagerID, Name: "Andrés Mora", Role: domain.RoleManager},
		CreatedAt: created,
	})
	if err != nil {
		return err
	}
	err = r.PutMessage(ctx, domain.Message{
		ID:         1,
		ChatID:     SeedChatID,
		SenderID:   SeedManagerID,
		SenderRole: domain.RoleManager,
		Body:       "hola",
		CreatedAt:  created.Add(time.Minute),
	})
	if err != nil {
		return err
	}

	return r.PutChat(ctx, domain.ChatSession{
		ID:        "C2",
		ProjectID: "P2",
		Client:    domain.Participant{UserID: "U3", Name: "Jorge Peña", Role: domain.RoleClient},
		Manager:   domain.Participant{UserID: SeedManagerID, Name: "Andrés Mora", Role: domain.RoleManager},
		CreatedAt: created,
	})
}
