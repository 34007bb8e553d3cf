package model

import (
	"time"
)

// User is identified by a browser fingerprint. There are no accounts or
// passwords; the fingerprint is the whole identity.
type User struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	FingerprintID string    `gorm:"uniqueIndex" json:"fingerprint_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// QAMessage is one turn of the legal Q&A assistant, either the user's
// question or the assistant's answer.
type QAMessage struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index" json:"session_id"`
	Role      string    `json:"role"` // user, assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
