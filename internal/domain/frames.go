package domain

// Websocket frame types sent by the chat client.
const (
	MsgTypeAuth        = "auth"
	MsgTypeJoinChat    = "join_chat"
	MsgTypeLeaveChat   = "leave_chat"
	MsgTypeTypingStart = "typing_start"
	MsgTypeTypingStop  = "typing_stop"
	MsgTypeReadReceipt = "read_receipt"
	MsgTypePing        = "ping"
)

// Websocket frame types sent by the chat backend. typing_start,
// typing_stop and read_receipt are relayed with the same type.
const (
	MsgTypeAuthResult = "auth_result"
	MsgTypeChatJoined = "chat_joined"
	MsgTypeNewMessage = "new_message"
	MsgTypeError      = "error"
	MsgTypePong       = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeNotInChat     = "NOT_IN_CHAT"
)

// BaseMessage is the base structure for all websocket frames.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server frames

type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type JoinChatMessage struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
}

type LeaveChatMessage struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
}

type TypingMessage struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id,omitempty"`
}

type ReadReceiptMessage struct {
	Type      string    `json:"type"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id,omitempty"`
	MessageID MessageID `json:"message_id"`
}

// Server -> Client frames

type AuthResultMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	UserID  string `json:"user_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type ChatJoinedMessage struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
}

type NewMessageOut struct {
	Type    string  `json:"type"`
	ChatID  string  `json:"chat_id"`
	Message Message `json:"message"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
