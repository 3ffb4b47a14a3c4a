package audit

import (
	"context"

	"github.com/obraviva/site-chat/pkg/log"
)

// Audit actions for the chat core and the development backend.
const (
	ActionConnect     = "chat.connect"
	ActionAuthFailed  = "chat.auth_failed"
	ActionDisconnect  = "chat.disconnect"
	ActionJoinChat    = "chat.join_chat"
	ActionLeaveChat   = "chat.leave_chat"
	ActionSendMessage = "chat.send"
	ActionMarkRead    = "chat.mark_read"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, chatID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldChatID, chatID).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail field.
func LogWithDetail(ctx context.Context, action, userID, chatID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldChatID, chatID).
		Str(FieldDetail, detail).
		Msg(msg)
}
