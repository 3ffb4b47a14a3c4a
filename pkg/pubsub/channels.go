package pubsub

import "fmt"

// Channel naming conventions for chat fan-out between backend instances.
const (
	ChannelChatEvents = "chat:%s:events"
	PatternChatEvents = "chat:*:events"
)

// Event types carried on chat channels. They mirror the websocket frame
// types pushed to clients.
const (
	EventNewMessage  = "new_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventReadReceipt = "read_receipt"
)

// ChatEventsChannel returns the channel name for one chat.
func ChatEventsChannel(chatID string) string {
	return fmt.Sprintf(ChannelChatEvents, chatID)
}
