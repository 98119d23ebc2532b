package domain

import "time"

// ChatMessage lives only for the duration of the broadcast; nothing is
// persisted across restarts.
type ChatMessage struct {
	Username string
	Content  string
	SentAt   time.Time
}

func NewChatMessage(username, content string) *ChatMessage {
	if username == "" {
		username = DefaultViewerName
	}
	return &ChatMessage{
		Username: username,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
}

// Clock renders the timestamp the way the watch page displays it.
func (m *ChatMessage) Clock() string {
	return m.SentAt.Format("15:04:05")
}
