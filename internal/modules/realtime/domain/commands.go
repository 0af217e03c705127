package domain

// Inbound frame tags. An untagged frame is a chat send.
const (
	InboundChatMessage = "chat_message"
	InboundPing        = "ping"
)

// ChatSendCommand is the payload a chat client sends to post a message.
type ChatSendCommand struct {
	Message string `json:"message" validate:"required"`
}

// NotificationTrigger asks for a notification to be stored and pushed to a recipient.
type NotificationTrigger struct {
	Recipient string `json:"recipient" validate:"required"`
	Message   string `json:"message"`
}
