package domain

// ConversationID identifies a WhatsApp counterpart (the sender's phone number
// as delivered by the Cloud API). It keys pause state and addresses replies.
type ConversationID = string

// MessageType is the provider message type. Only text is processed.
type MessageType string

const MessageTypeText MessageType = "text"

// InboundMessage is one message extracted from a webhook delivery.
// Body is only set when Type is text.
type InboundMessage struct {
	ID     string
	Sender ConversationID
	Type   MessageType
	Body   string
}

func (m InboundMessage) IsText() bool {
	return m.Type == MessageTypeText
}
