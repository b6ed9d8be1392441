package dto

// Realtime frame types exchanged over the websocket channel.
const (
	RealtimeTypeRegister   = "register"
	RealtimeTypeRegistered = "registered"
	RealtimeTypePing       = "ping"
	RealtimeTypePong       = "pong"
	RealtimeTypeNewMessage = "new_message"
	RealtimeTypeError      = "error"
)

// RealtimeInbound is a frame sent by clients.
type RealtimeInbound struct {
	Type   string `json:"type"`
	UserID uint   `json:"userId,omitempty"`
}

// RealtimeEvent is a frame pushed to clients.
type RealtimeEvent struct {
	Type           string           `json:"type"`
	UserID         uint             `json:"userId,omitempty"`
	ConversationID uint             `json:"conversationId,omitempty"`
	Message        *MessageResponse `json:"message,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// NewMessageEvent builds the push payload announcing a freshly stored message.
func NewMessageEvent(message MessageResponse) RealtimeEvent {
	return RealtimeEvent{
		Type:           RealtimeTypeNewMessage,
		ConversationID: message.ConversationID,
		Message:        &message,
	}
}
