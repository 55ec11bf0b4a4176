package server

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/peerchat/peerchat/internal/database"
	"github.com/peerchat/peerchat/internal/stats"
	"github.com/peerchat/peerchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestChatServer_handleChatMessage_recipientOnline(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
		return m.Room == "alice-bob" && m.Sender == "alice" && m.Content == "hello" &&
			m.Status == types.StatusSent
	})).Return(1, nil).Once()
	db.On("IncrementUnread", "bob", "alice-bob").Return(nil).Once()
	db.On("MarkMessageDelivered", 1).Return(true, nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", MetricChatMessages).Once()

	cs := newTestChatServer(t, db, su, nil, nil)
	alice := newTestClient(t, "conn-a")
	bob := newTestClient(t, "conn-b")
	registerUser(cs, alice, "alice")
	registerUser(cs, bob, "bob")
	cs.router.Join("alice-bob", alice)
	cs.router.Join("alice-bob", bob)

	cs.handleChatMessage(alice, chatMessagePayload{Room: "alice-bob", Message: "hello", From: "alice"})

	// sender hears about the promotion first, then the echo
	env := recvEvent(t, alice)
	assert.Equal(t, EventMessageDelivered, env.Event, "expected delivery receipt for sender")
	receipt, ok := env.Data.(messageDeliveredEvent)
	assert.True(t, ok, "expected messageDeliveredEvent payload")
	assert.Equal(t, 1, receipt.MessageId)
	assert.Equal(t, types.StatusDelivered, receipt.Status)
	assert.Equal(t, []string{"bob"}, receipt.DeliveredTo)

	env = recvEvent(t, alice)
	assert.Equal(t, EventReceiveChatMessage, env.Event, "expected room broadcast to include sender")

	env = recvEvent(t, bob)
	assert.Equal(t, EventReceiveChatMessage, env.Event, "expected recipient to receive the message")
	msg, ok := env.Data.(chatMessageEvent)
	assert.True(t, ok, "expected chatMessageEvent payload")
	assert.Equal(t, "alice", msg.From)
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, types.StatusDelivered, msg.Status)

	env = recvEvent(t, bob)
	assert.Equal(t, EventGlobalNotification, env.Event, "expected cross-room notification for recipient")
	notif, ok := env.Data.(globalNotificationEvent)
	assert.True(t, ok, "expected globalNotificationEvent payload")
	assert.Equal(t, "alice", notif.From)
	assert.Equal(t, "alice-bob", notif.Room)
	assert.Equal(t, "text", notif.MessageType)

	assertNoEvent(t, alice)
}

func TestChatServer_handleChatMessage_recipientOffline(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
		return m.Status == types.StatusSent
	})).Return(2, nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", MetricChatMessages).Once()

	cs := newTestChatServer(t, db, su, nil, nil)
	alice := newTestClient(t, "conn-a")
	registerUser(cs, alice, "alice")
	cs.router.Join("alice-bob", alice)

	cs.handleChatMessage(alice, chatMessagePayload{Room: "alice-bob", Message: "hello", From: "alice"})

	// no recipient online: the message stays sent, no receipt, no counters
	env := recvEvent(t, alice)
	assert.Equal(t, EventReceiveChatMessage, env.Event)
	msg := env.Data.(chatMessageEvent)
	assert.Equal(t, types.StatusSent, msg.Status, "expected status to remain sent")
	assert.Empty(t, msg.DeliveredTo, "expected no delivery recipients")

	assertNoEvent(t, alice)
}

func TestChatServer_handleChatMessage_withReply(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
		return m.ReplyToId == 7 && m.ReplyContent == "original" && m.ReplySender == "bob"
	})).Return(3, nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", MetricChatMessages).Once()

	cs := newTestChatServer(t, db, su, nil, nil)
	alice := newTestClient(t, "conn-a")
	registerUser(cs, alice, "alice")
	cs.router.Join("alice-bob", alice)

	cs.handleChatMessage(alice, chatMessagePayload{
		Room:    "alice-bob",
		Message: "replying",
		From:    "alice",
		Reply:   &replyRef{MessageId: 7, Message: "original", Sender: "bob"},
	})

	env := recvEvent(t, alice)
	msg := env.Data.(chatMessageEvent)
	assert.Equal(t, 7, msg.ReplyToId, "expected reply reference to be echoed")
	assert.Equal(t, "original", msg.ReplyContent)
	assert.Equal(t, "bob", msg.ReplySender)
}

func TestChatServer_handleChatMessage_malformed(t *testing.T) {
	cs := newTestChatServer(t, &database.MockRepository{}, &stats.MockStatsUpdater{}, nil, nil)
	alice := newTestClient(t, "conn-a")
	registerUser(cs, alice, "alice")

	cs.handleChatMessage(alice, chatMessagePayload{Room: "alice-bob", From: "alice"})
	cs.handleChatMessage(alice, chatMessagePayload{Message: "hi", From: "alice"})
	cs.handleChatMessage(alice, chatMessagePayload{Room: "alice-bob", Message: "hi"})
	assertNoEvent(t, alice)
}

func TestChatServer_handleChatMessage_saveError(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.Anything).Return(0, errors.New("db error")).Once()

	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)
	alice := newTestClient(t, "conn-a")
	registerUser(cs, alice, "alice")

	cs.handleChatMessage(alice, chatMessagePayload{Room: "alice-bob", Message: "hello", From: "alice"})

	env := recvEvent(t, alice)
	assert.Equal(t, EventError, env.Event, "expected error event when persistence fails")
}

func TestChatServer_handleAudioMessage(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateAudioMessage", mock.MatchedBy(func(m database.AudioMessage) bool {
		// data URL prefix is stripped before persistence
		return m.AudioData == "AAAA" && m.Room == "alice-bob" && m.Sender == "alice"
	})).Return(4, nil).Once()
	db.On("IncrementUnread", "bob", "alice-bob").Return(nil).Once()
	db.On("MarkAudioMessageDelivered", 4).Return(true, nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", MetricAudioMessages).Once()

	cs := newTestChatServer(t, db, su, nil, nil)
	alice := newTestClient(t, "conn-a")
	bob := newTestClient(t, "conn-b")
	registerUser(cs, alice, "alice")
	registerUser(cs, bob, "bob")
	cs.router.Join("alice-bob", alice)
	cs.router.Join("alice-bob", bob)

	cs.handleAudioMessage(alice, audioMessagePayload{
		Room: "alice-bob",
		From: "alice",
		Blob: "data:audio/webm;base64,AAAA",
	})

	env := recvEvent(t, alice)
	assert.Equal(t, EventMessageDelivered, env.Event)
	receipt := env.Data.(messageDeliveredEvent)
	assert.Equal(t, "audio", receipt.Type, "expected receipt to carry the audio marker")

	env = recvEvent(t, alice)
	assert.Equal(t, EventAudioMessage, env.Event)

	env = recvEvent(t, bob)
	assert.Equal(t, EventAudioMessage, env.Event)
	audio := env.Data.(audioMessageEvent)
	assert.Equal(t, "data:audio/webm;base64,AAAA", audio.Blob, "expected data URL on the wire")
	assert.Equal(t, types.StatusDelivered, audio.Status)
	assert.NotZero(t, audio.Timestamp, "expected an epoch-millis timestamp to be filled in")
}

func TestChatServer_promoteDeliveries(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("DistinctRooms").Return([]string{"alice-bob", "carol-dave"}, nil).Once()
	db.On("ListSentMessagesFromOthers", "alice-bob", "bob").Return([]database.Message{
		{Id: 1, Sender: "alice"},
		{Id: 2, Sender: "alice"},
	}, nil).Once()
	db.On("ListSentAudioMessagesFromOthers", "alice-bob", "bob").Return([]database.AudioMessage{
		{Id: 3, Sender: "alice"},
	}, nil).Once()
	db.On("MarkMessageDelivered", 1).Return(true, nil).Once()
	db.On("MarkMessageDelivered", 2).Return(true, nil).Once()
	db.On("MarkAudioMessageDelivered", 3).Return(true, nil).Once()

	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)
	alice := newTestClient(t, "conn-a")
	registerUser(cs, alice, "alice")

	// bob comes online; rooms he is not a participant of are skipped
	cs.promoteDeliveries("bob")

	env := recvEvent(t, alice)
	assert.Equal(t, EventMessagesDelivered, env.Event, "expected batch delivery notice for sender")
	batch, ok := env.Data.(messagesDeliveredEvent)
	assert.True(t, ok, "expected messagesDeliveredEvent payload")
	assert.Equal(t, []int{1, 2, 3}, batch.MessageIds, "expected ids batched in order")
	assert.Equal(t, "bob", batch.DeliveredTo)
	assertNoEvent(t, alice)
}

func TestChatServer_promoteDeliveries_alreadyDelivered(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("DistinctRooms").Return([]string{"alice-bob"}, nil).Once()
	db.On("ListSentMessagesFromOthers", "alice-bob", "bob").Return([]database.Message{
		{Id: 1, Sender: "alice"},
	}, nil).Once()
	db.On("ListSentAudioMessagesFromOthers", "alice-bob", "bob").Return([]database.AudioMessage{}, nil).Once()
	// a concurrent promotion got there first: no notice goes out
	db.On("MarkMessageDelivered", 1).Return(false, nil).Once()

	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)
	alice := newTestClient(t, "conn-a")
	registerUser(cs, alice, "alice")

	cs.promoteDeliveries("bob")
	assertNoEvent(t, alice)
}

func TestChatServer_handleMarkSeen(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("GetMessage", 1).Return(database.Message{Id: 1, Sender: "alice", Status: types.StatusDelivered}, nil).Once()
	db.On("MarkMessageSeen", 1).Return(true, nil).Once()
	db.On("GetAudioMessage", 1).Return(database.AudioMessage{}, sql.ErrNoRows).Once()
	db.On("GetMessage", 2).Return(database.Message{}, sql.ErrNoRows).Once()
	db.On("GetAudioMessage", 2).Return(database.AudioMessage{Id: 2, Sender: "alice", Status: types.StatusDelivered}, nil).Once()
	db.On("MarkAudioMessageSeen", 2).Return(true, nil).Once()
	db.On("ResetUnread", "bob", "alice-bob").Return(nil).Once()

	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)
	alice := newTestClient(t, "conn-a")
	bob := newTestClient(t, "conn-b")
	registerUser(cs, alice, "alice")
	registerUser(cs, bob, "bob")

	cs.handleMarkSeen(bob, markSeenPayload{
		MessageIds:  []int{1, 2},
		CurrentUser: "bob",
		Room:        "alice-bob",
	})

	env := recvEvent(t, alice)
	assert.Equal(t, EventMessagesSeen, env.Event, "expected seen notice for original sender")
	seen, ok := env.Data.(messagesSeenEvent)
	assert.True(t, ok, "expected messagesSeenEvent payload")
	assert.Equal(t, []int{1, 2}, seen.MessageIds, "expected both id spaces to be covered")
	assert.Equal(t, "bob", seen.SeenBy)
	assert.Equal(t, "alice-bob", seen.Room)
}

func TestChatServer_handleMarkSeen_skipsOwnAndSeen(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	// own message: never marked
	db.On("GetMessage", 1).Return(database.Message{Id: 1, Sender: "bob", Status: types.StatusDelivered}, nil).Once()
	db.On("GetAudioMessage", 1).Return(database.AudioMessage{}, sql.ErrNoRows).Once()
	// already seen: marking again would regress nothing, skip it
	db.On("GetMessage", 2).Return(database.Message{Id: 2, Sender: "alice", Status: types.StatusSeen}, nil).Once()
	db.On("GetAudioMessage", 2).Return(database.AudioMessage{}, sql.ErrNoRows).Once()
	db.On("ResetUnread", "bob", "alice-bob").Return(nil).Once()

	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)
	alice := newTestClient(t, "conn-a")
	bob := newTestClient(t, "conn-b")
	registerUser(cs, alice, "alice")
	registerUser(cs, bob, "bob")

	cs.handleMarkSeen(bob, markSeenPayload{
		MessageIds:  []int{1, 2},
		CurrentUser: "bob",
		Room:        "alice-bob",
	})

	assertNoEvent(t, alice)
}

func TestChatServer_handleSendFile(t *testing.T) {
	t.Run("valid upload is broadcast to the room", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
			return m.MessageClass == "file_message" && m.FileId == "abc123" && m.Sender == "alice"
		})).Return(9, nil).Once()

		auth := &MockCredentialValidator{}
		defer auth.AssertExpectations(t)
		auth.On("Validate", "tok").Return("alice", nil).Once()

		files := &MockFileStore{}
		defer files.AssertExpectations(t)
		files.On("Exists", "abc123", "png").Return(true).Once()

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, auth, files)
		alice := newTestClient(t, "conn-a")
		bob := newTestClient(t, "conn-b")
		registerUser(cs, alice, "alice")
		registerUser(cs, bob, "bob")
		cs.router.Join("alice-bob", alice)
		cs.router.Join("alice-bob", bob)

		cs.handleSendFile(alice, sendFilePayload{
			Token:    "tok",
			Room:     "alice-bob",
			FileId:   "abc123",
			FileName: "cat.png",
			FileType: "image/png",
			FileSize: 1024,
			FileUrl:  "/uploads/abc123.png",
		})

		env := recvEvent(t, bob)
		assert.Equal(t, EventFileMessage, env.Event)
		fileMsg, ok := env.Data.(fileMessageEvent)
		assert.True(t, ok, "expected fileMessageEvent payload")
		assert.Equal(t, "alice", fileMsg.Sender)
		assert.Equal(t, 9, fileMsg.MessageId)

		// the uploader already rendered the file locally
		assertNoEvent(t, alice)
	})

	t.Run("unknown upload is refused", func(t *testing.T) {
		auth := &MockCredentialValidator{}
		defer auth.AssertExpectations(t)
		auth.On("Validate", "tok").Return("alice", nil).Once()

		files := &MockFileStore{}
		defer files.AssertExpectations(t)
		files.On("Exists", "ghost", "png").Return(false).Once()

		cs := newTestChatServer(t, &database.MockRepository{}, &stats.MockStatsUpdater{}, auth, files)
		alice := newTestClient(t, "conn-a")
		registerUser(cs, alice, "alice")

		cs.handleSendFile(alice, sendFilePayload{
			Token:    "tok",
			Room:     "alice-bob",
			FileId:   "ghost",
			FileName: "cat.png",
			FileType: "image/png",
			FileSize: 1024,
			FileUrl:  "/uploads/ghost.png",
		})
		assertNoEvent(t, alice)
	})

	t.Run("rejected token drops the event", func(t *testing.T) {
		auth := &MockCredentialValidator{}
		defer auth.AssertExpectations(t)
		auth.On("Validate", "badtok").Return("", errors.New("invalid")).Once()

		cs := newTestChatServer(t, &database.MockRepository{}, &stats.MockStatsUpdater{}, auth, nil)
		alice := newTestClient(t, "conn-a")
		registerUser(cs, alice, "alice")

		cs.handleSendFile(alice, sendFilePayload{Token: "badtok", Room: "alice-bob", FileId: "abc"})
		assertNoEvent(t, alice)
	})
}

func TestChatServer_handleLegacyMessage(t *testing.T) {
	t.Run("text message from registered sender", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
			return m.Sender == "alice" && m.MessageClass == "text_message" && m.Content == "hi"
		})).Return(5, nil).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", MetricChatMessages).Once()

		cs := newTestChatServer(t, db, su, nil, nil)
		alice := newTestClient(t, "conn-a")
		registerUser(cs, alice, "alice")
		cs.router.Join("alice-bob", alice)

		cs.handleLegacyMessage(alice, legacyMessagePayload{Room: "alice-bob", Message: "hi"})

		env := recvEvent(t, alice)
		assert.Equal(t, EventMessage, env.Event, "expected legacy echo to include sender")
		msg := env.Data.(legacyMessageEvent)
		assert.Equal(t, "alice", msg.Sender, "expected sender taken from presence, not payload")
		assert.Equal(t, "text_message", msg.MessageClass)
	})

	t.Run("file message defaults content", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
			return m.MessageClass == "file_message" && m.Content == "[File] cat.png"
		})).Return(6, nil).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", MetricChatMessages).Once()

		cs := newTestChatServer(t, db, su, nil, nil)
		alice := newTestClient(t, "conn-a")
		registerUser(cs, alice, "alice")
		cs.router.Join("alice-bob", alice)

		cs.handleLegacyMessage(alice, legacyMessagePayload{
			Room:     "alice-bob",
			FileId:   "abc123",
			FileName: "cat.png",
			FileUrl:  "/uploads/abc123.png",
		})

		env := recvEvent(t, alice)
		msg := env.Data.(legacyMessageEvent)
		assert.Equal(t, "[File] cat.png", msg.Message)
	})

	t.Run("unregistered connection is dropped", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRepository{}, &stats.MockStatsUpdater{}, nil, nil)
		anon := newTestClient(t, "conn-x")
		addConn(cs, anon)

		cs.handleLegacyMessage(anon, legacyMessagePayload{Room: "alice-bob", Message: "hi"})
		assertNoEvent(t, anon)
	})
}

func TestChatServer_handleCallChatMessage(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
		return m.Room == "alice-bob" && m.Sender == "alice" && m.Content == "in-call hello"
	})).Return(8, nil).Once()

	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)
	alice := newTestClient(t, "conn-a")
	bob := newTestClient(t, "conn-b")
	registerUser(cs, alice, "alice")
	registerUser(cs, bob, "bob")
	cs.router.Join("alice-bob", alice)
	cs.router.Join("alice-bob", bob)

	cs.handleCallChatMessage(alice, chatMessagePayload{Room: "alice-bob", Message: "in-call hello", From: "alice"})

	env := recvEvent(t, bob)
	assert.Equal(t, EventCallChatMessage, env.Event, "expected in-call chat relay")

	env = recvEvent(t, bob)
	assert.Equal(t, EventGlobalNotification, env.Event, "expected cross-room notification")

	// sender is excluded from the in-call relay
	assertNoEvent(t, alice)
}

func TestChatServer_AddReaction(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAudioMessage", 5).Return(database.AudioMessage{}, sql.ErrNoRows).Once()
		db.On("GetMessage", 5).Return(database.Message{Id: 5, Room: "alice-bob", Reactions: types.Reactions{}}, nil).Once()
		db.On("UpdateMessageReactions", 5, types.Reactions{"alice": "👍"}).Return(nil).Once()

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)
		bob := newTestClient(t, "conn-b")
		registerUser(cs, bob, "bob")
		cs.router.Join("alice-bob", bob)

		reactions, err := cs.AddReaction(5, "alice", "👍")
		assert.NoError(t, err)
		assert.Equal(t, types.Reactions{"alice": "👍"}, reactions)

		env := recvEvent(t, bob)
		assert.Equal(t, EventReactionsUpdated, env.Event, "expected reaction broadcast to room")
	})

	t.Run("audio store is checked first", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAudioMessage", 7).Return(database.AudioMessage{Id: 7, Room: "alice-bob", Reactions: types.Reactions{}}, nil).Once()
		db.On("UpdateAudioMessageReactions", 7, types.Reactions{"bob": "🔥"}).Return(nil).Once()

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)

		reactions, err := cs.AddReaction(7, "bob", "🔥")
		assert.NoError(t, err)
		assert.Equal(t, types.Reactions{"bob": "🔥"}, reactions)
	})

	t.Run("re-adding overwrites", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAudioMessage", 5).Return(database.AudioMessage{}, sql.ErrNoRows).Once()
		db.On("GetMessage", 5).Return(database.Message{Id: 5, Room: "alice-bob", Reactions: types.Reactions{"alice": "👍"}}, nil).Once()
		db.On("UpdateMessageReactions", 5, types.Reactions{"alice": "❤️"}).Return(nil).Once()

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)

		reactions, err := cs.AddReaction(5, "alice", "❤️")
		assert.NoError(t, err)
		assert.Equal(t, "❤️", reactions["alice"], "expected new reaction to replace the old one")
	})

	t.Run("unknown id in both stores", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAudioMessage", 99).Return(database.AudioMessage{}, sql.ErrNoRows).Once()
		db.On("GetMessage", 99).Return(database.Message{}, sql.ErrNoRows).Once()

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)

		_, err := cs.AddReaction(99, "alice", "👍")
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})
}

func TestChatServer_RemoveReaction(t *testing.T) {
	t.Run("removes existing reaction", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAudioMessage", 5).Return(database.AudioMessage{}, sql.ErrNoRows).Once()
		db.On("GetMessage", 5).Return(database.Message{Id: 5, Room: "alice-bob", Reactions: types.Reactions{"alice": "👍", "bob": "🔥"}}, nil).Once()
		db.On("UpdateMessageReactions", 5, types.Reactions{"bob": "🔥"}).Return(nil).Once()

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)

		reactions, err := cs.RemoveReaction(5, "alice")
		assert.NoError(t, err)
		assert.NotContains(t, reactions, "alice", "expected alice's reaction to be removed")
		assert.Contains(t, reactions, "bob", "expected other reactions to survive")
	})

	t.Run("removing an absent reaction is a no-op", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAudioMessage", 5).Return(database.AudioMessage{}, sql.ErrNoRows).Once()
		db.On("GetMessage", 5).Return(database.Message{Id: 5, Room: "alice-bob", Reactions: types.Reactions{}}, nil).Once()
		db.On("UpdateMessageReactions", 5, types.Reactions{}).Return(nil).Once()

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)

		reactions, err := cs.RemoveReaction(5, "carol")
		assert.NoError(t, err)
		assert.Empty(t, reactions)
	})
}

func TestChatServer_broadcastHelpers(t *testing.T) {
	db := &database.MockRepository{}
	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{}, nil, nil)
	alice := newTestClient(t, "conn-a")
	bob := newTestClient(t, "conn-b")
	registerUser(cs, alice, "alice")
	registerUser(cs, bob, "bob")
	cs.router.Join("alice-bob", alice)
	cs.router.Join("alice-bob", bob)

	cs.BroadcastMessageDeleted("alice-bob", 5)
	env := recvEvent(t, alice)
	assert.Equal(t, EventMessageDeleted, env.Event)
	assert.Equal(t, map[string]any{"message_id": 5}, env.Data)
	recvEvent(t, bob)

	cs.BroadcastMessageEdited(database.Message{Id: 5, Room: "alice-bob", Content: "edited", CreatedAt: Now()})
	env = recvEvent(t, alice)
	assert.Equal(t, EventMessageEdited, env.Event)
	recvEvent(t, bob)

	cs.BroadcastAllMessagesDeleted()
	env = recvEvent(t, alice)
	assert.Equal(t, EventAllMessagesDeleted, env.Event)
	assert.Nil(t, env.Data, "expected no payload on history purge notice")
	recvEvent(t, bob)
}
