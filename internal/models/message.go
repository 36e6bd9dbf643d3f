package models

import "time"

// Message represents a 1:1 chat message (PostgreSQL, table "messages")
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	SenderID   string    `json:"sender_id" gorm:"type:uuid;index"`
	ReceiverID string    `json:"receiver_id" gorm:"type:uuid;index"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) ToRecord() Record {
	return Record{
		ID:        m.ID,
		Scope:     ConversationScope(m.SenderID, m.ReceiverID),
		AuthorID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// SendMessageRequest defines the request body for sending a chat message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}
