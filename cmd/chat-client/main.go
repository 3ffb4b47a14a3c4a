package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/obraviva/site-chat/internal/api"
	"github.com/obraviva/site-chat/internal/chatview"
	"github.com/obraviva/site-chat/internal/config"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/internal/identity"
	"github.com/obraviva/site-chat/internal/tui"
	"github.com/obraviva/site-chat/internal/unread"
	"github.com/obraviva/site-chat/internal/wsconn"
	pkglog "github.com/obraviva/site-chat/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := pkglog.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids, err := resolveIdentity(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("no usable identity")
	}
	id, err := ids.Identity()
	if err != nil {
		logger.Fatal().Err(err).Msg("no usable identity")
	}
	ctx = pkglog.WithLogger(ctx, logger.With().Str(pkglog.FieldUserID, id.UserID).Logger())

	client := api.New(cfg.API.BaseURL, ids, api.WithTimeout(cfg.API.Timeout))

	counter, err := unread.New(cfg.Unread, id.UserID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create unread counter")
	}
	defer counter.Close()

	chats, err := client.ListChats(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list chats")
	}
	counts := make(map[string]int, len(chats))
	for _, c := range chats {
		counts[c.Chat.ID] = c.UnreadCount
	}
	if err := counter.Seed(ctx, counts); err != nil {
		logger.Warn().Err(err).Msg("failed to seed unread counters")
	}

	chatID, err := pickChat(os.Args[1:], chats)
	if err != nil {
		logger.Fatal().Err(err).Msg("no chat to open")
	}

	changes := make(chan struct{}, 1)
	view := chatview.New(chatview.Config{
		WebSocket: wsconn.Config{
			URL:              cfg.WebSocket.URL,
			HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
			PingInterval:     cfg.WebSocket.PingInterval,
			PongWait:         cfg.WebSocket.PongWait,
			WriteWait:        cfg.WebSocket.WriteWait,
			MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
			SendBuffer:       cfg.WebSocket.SendBuffer,
		},
		TypingWindow:        cfg.Chat.TypingWindow,
		RemoteTypingTimeout: cfg.Chat.RemoteTypingTimeout,
		IngestSendAck:       cfg.Chat.IngestSendAck,
	}, client, ids, counter, chatview.WithNotify(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}))
	defer view.Close()

	p := tea.NewProgram(tui.New(view),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				p.Send(tui.ChangedMsg{})
			}
		}
	}()

	go func() {
		if err := view.Mount(ctx, chatID); err != nil {
			logger.Warn().Err(err).Str(pkglog.FieldChatID, chatID).Msg("chat opened with errors")
		}
	}()

	if _, err := p.Run(); err != nil {
		logger.Error().Err(err).Msg("terminal ui failed")
	}
	cancel()
}

// resolveIdentity uses the configured token or, without one, asks the
// development backend to issue a token for identity.user_id.
func resolveIdentity(ctx context.Context, cfg *config.ClientConfig) (*identity.TokenProvider, error) {
	token := cfg.Identity.Token
	if token == "" {
		if cfg.Identity.UserID == "" {
			return nil, fmt.Errorf("set identity.token or identity.user_id")
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var err error
		token, err = api.New(cfg.API.BaseURL, nil).DevToken(ctx, cfg.Identity.UserID, domain.Role(cfg.Identity.Role))
		if err != nil {
			return nil, fmt.Errorf("request development token: %w", err)
		}
	}
	return identity.FromToken(token)
}

func pickChat(args []string, chats []domain.ChatSummary) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if len(chats) == 0 {
		return "", fmt.Errorf("user has no chats")
	}
	return chats[0].Chat.ID, nil
}
