package wsconn

import (
	"encoding/json"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/log"
)

type newMessageFrame struct {
	ChatID  string          `json:"chat_id"`
	Message json.RawMessage `json:"message"`
}

// decodeEvent turns an inbound frame into an Event. Control frames and
// malformed payloads report false; malformed ones are logged.
func decodeEvent(data []byte) (domain.Event, bool) {
	l := log.L()

	var base domain.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		l.Warn().Err(err).Msg("dropping malformed frame")
		return domain.Event{}, false
	}

	switch base.Type {
	case domain.MsgTypeNewMessage:
		var f newMessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			l.Warn().Err(err).Str(log.FieldEventType, base.Type).Msg("dropping malformed frame")
			return domain.Event{}, false
		}
		var m domain.Message
		if err := json.Unmarshal(f.Message, &m); err != nil {
			l.Warn().Err(err).Str(log.FieldEventType, base.Type).Msg("dropping malformed message")
			return domain.Event{}, false
		}
		if err := m.Validate(); err != nil {
			l.Warn().Err(err).Stringer(log.FieldMessageID, m.ID).Msg("dropping invalid message")
			return domain.Event{}, false
		}
		chatID := f.ChatID
		if chatID == "" {
			chatID = m.ChatID
		}
		return domain.Event{Type: domain.EventNewMessage, ChatID: chatID, UserID: m.SenderID, Message: &m, MessageID: m.ID}, true

	case domain.MsgTypeTypingStart, domain.MsgTypeTypingStop:
		var f domain.TypingMessage
		if err := json.Unmarshal(data, &f); err != nil || f.ChatID == "" || f.UserID == "" {
			l.Warn().Err(err).Str(log.FieldEventType, base.Type).Msg("dropping malformed typing frame")
			return domain.Event{}, false
		}
		t := domain.EventTypingStop
		if base.Type == domain.MsgTypeTypingStart {
			t = domain.EventTypingStart
		}
		return domain.Event{Type: t, ChatID: f.ChatID, UserID: f.UserID}, true

	case domain.MsgTypeReadReceipt:
		var f domain.ReadReceiptMessage
		if err := json.Unmarshal(data, &f); err != nil || f.ChatID == "" || f.UserID == "" {
			l.Warn().Err(err).Str(log.FieldEventType, base.Type).Msg("dropping malformed read receipt")
			return domain.Event{}, false
		}
		return domain.Event{Type: domain.EventReadReceipt, ChatID: f.ChatID, UserID: f.UserID, MessageID: f.MessageID}, true

	case domain.MsgTypeError:
		var f domain.ErrorMessage
		_ = json.Unmarshal(data, &f)
		l.Warn().Str("code", f.Code).Str("detail", f.Message).Msg("chat backend reported an error")
		return domain.Event{}, false

	default:
		return domain.Event{}, false
	}
}
