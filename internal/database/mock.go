package database

import (
	"github.com/peerchat/peerchat/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) ListUsernames() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockRepository) CreateMessage(msg Message) (int, error) {
	args := m.Called(msg)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) GetMessage(id int) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) UpdateMessageContent(id int, content string) (Message, error) {
	args := m.Called(id, content)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) UpdateMessageReactions(id int, reactions types.Reactions) error {
	args := m.Called(id, reactions)
	return args.Error(0)
}
func (m *MockRepository) MarkMessageDelivered(id int) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) MarkMessageSeen(id int) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) DeleteMessage(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRepository) ListRoomMessages(room string) ([]Message, error) {
	args := m.Called(room)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) ListSentMessagesFromOthers(room, username string) ([]Message, error) {
	args := m.Called(room, username)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) DistinctRooms() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockRepository) CreateAudioMessage(msg AudioMessage) (int, error) {
	args := m.Called(msg)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) GetAudioMessage(id int) (AudioMessage, error) {
	args := m.Called(id)
	return args.Get(0).(AudioMessage), args.Error(1)
}
func (m *MockRepository) UpdateAudioMessageReactions(id int, reactions types.Reactions) error {
	args := m.Called(id, reactions)
	return args.Error(0)
}
func (m *MockRepository) MarkAudioMessageDelivered(id int) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) MarkAudioMessageSeen(id int) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) ListRoomAudioMessages(room string) ([]AudioMessage, error) {
	args := m.Called(room)
	return args.Get(0).([]AudioMessage), args.Error(1)
}
func (m *MockRepository) ListSentAudioMessagesFromOthers(room, username string) ([]AudioMessage, error) {
	args := m.Called(room, username)
	return args.Get(0).([]AudioMessage), args.Error(1)
}
func (m *MockRepository) IncrementUnread(username, room string) error {
	args := m.Called(username, room)
	return args.Error(0)
}
func (m *MockRepository) ResetUnread(username, room string) error {
	args := m.Called(username, room)
	return args.Error(0)
}
func (m *MockRepository) UnreadCounts(username string) (map[string]int, error) {
	args := m.Called(username)
	return args.Get(0).(map[string]int), args.Error(1)
}
func (m *MockRepository) DeleteAllMessages() (int64, int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}
