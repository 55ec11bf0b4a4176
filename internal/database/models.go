package database

import (
	"time"

	"github.com/peerchat/peerchat/internal/types"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is a persisted text or file message. Content may be empty for a
// pure file message; file fields are empty for a pure text message.
type Message struct {
	Id           int
	Room         string
	Sender       string
	Content      string
	ReplyToId    int
	ReplyContent string
	ReplySender  string
	MessageClass string
	FileId       string
	FileName     string
	FileType     string
	FileSize     int64
	FileUrl      string
	Reactions    types.Reactions
	Status       types.MessageStatus
	CreatedAt    time.Time
}

// AudioMessage carries its payload inline as base64-encoded audio. Its id
// space is independent from Message; callers referencing a bare id must
// check both tables.
type AudioMessage struct {
	Id        int
	Room      string
	Sender    string
	AudioData string
	Reactions types.Reactions
	Status    types.MessageStatus
	CreatedAt time.Time
}

type UnreadCounter struct {
	Username string
	Room     string
	Count    int
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}
