package types

import "time"

// MessageStatus is the delivery lifecycle stage of a message. Transitions
// are monotonic: sent -> delivered -> seen.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

// Reactions maps a username to the emoji they reacted with. One reaction
// per user; re-adding overwrites.
type Reactions map[string]string

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// UserStatus is a roster entry: a known account and whether it currently
// holds a live connection.
type UserStatus struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// FileMeta describes an upload referenced by a file message. The upload
// itself lives outside this system; only the metadata rides along.
type FileMeta struct {
	FileId   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	FileUrl  string `json:"file_url"`
}

// HistoryMessage is the unified read-side view over text/file and audio
// messages, sorted by timestamp when returned for a room.
type HistoryMessage struct {
	Type         string        `json:"type"`
	MessageId    int           `json:"message_id"`
	Sender       string        `json:"sender"`
	Content      string        `json:"content,omitempty"`
	AudioData    string        `json:"audio_data,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	Room         string        `json:"room"`
	FileId       string        `json:"file_id,omitempty"`
	FileName     string        `json:"file_name,omitempty"`
	FileType     string        `json:"file_type,omitempty"`
	FileSize     int64         `json:"file_size,omitempty"`
	FileUrl      string        `json:"file_url,omitempty"`
	ReplyToId    int           `json:"reply_to_message_id,omitempty"`
	ReplyContent string        `json:"reply_content,omitempty"`
	ReplySender  string        `json:"reply_sender,omitempty"`
	MessageClass string        `json:"message_class,omitempty"`
	Reactions    Reactions     `json:"reactions"`
	Status       MessageStatus `json:"status"`
}
