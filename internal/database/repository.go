package database

import "github.com/peerchat/peerchat/internal/types"

type Repository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	ListUsernames() ([]string, error)

	CreateMessage(msg Message) (int, error)
	GetMessage(id int) (Message, error)
	UpdateMessageContent(id int, content string) (Message, error)
	UpdateMessageReactions(id int, reactions types.Reactions) error
	MarkMessageDelivered(id int) (bool, error)
	MarkMessageSeen(id int) (bool, error)
	DeleteMessage(id int) error
	ListRoomMessages(room string) ([]Message, error)
	ListSentMessagesFromOthers(room, username string) ([]Message, error)
	DistinctRooms() ([]string, error)

	CreateAudioMessage(msg AudioMessage) (int, error)
	GetAudioMessage(id int) (AudioMessage, error)
	UpdateAudioMessageReactions(id int, reactions types.Reactions) error
	MarkAudioMessageDelivered(id int) (bool, error)
	MarkAudioMessageSeen(id int) (bool, error)
	ListRoomAudioMessages(room string) ([]AudioMessage, error)
	ListSentAudioMessagesFromOthers(room, username string) ([]AudioMessage, error)

	IncrementUnread(username, room string) error
	ResetUnread(username, room string) error
	UnreadCounts(username string) (map[string]int, error)

	DeleteAllMessages() (int64, int64, error)
}
