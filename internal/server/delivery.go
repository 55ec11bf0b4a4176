package server

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/peerchat/peerchat/internal/database"
	"github.com/peerchat/peerchat/internal/types"
)

var ErrMessageNotFound = errors.New("message not found")

const audioDataPrefix = "data:audio/webm;base64,"

// onlineRecipients resolves which room participants other than sender
// currently hold a live connection, bumping each one's unread counter for
// the room. The returned set drives the sent -> delivered promotion.
func (cs *ChatServer) onlineRecipients(room, sender string) []string {
	deliveredTo := []string{}
	for _, recipient := range RoomParticipants(room) {
		if recipient == sender {
			continue
		}
		if _, ok := cs.presence.Resolve(recipient); !ok {
			continue
		}

		deliveredTo = append(deliveredTo, recipient)
		if err := cs.db.IncrementUnread(recipient, room); err != nil {
			cs.log.Printf("increment unread for %q in %q: %v", recipient, room, err)
		}
	}
	return deliveredTo
}

// globalNotification fans a lightweight preview out to every online user
// except the sender, regardless of room membership, so contact lists can
// update across rooms.
func (cs *ChatServer) globalNotification(sender, message, room, messageType string) {
	env := &Envelope{Event: EventGlobalNotification, Data: globalNotificationEvent{
		From:        sender,
		Message:     message,
		Timestamp:   Now(),
		Room:        room,
		MessageType: messageType,
	}}

	for username := range cs.presence.OnlineUsernames() {
		if username == sender {
			continue
		}
		cs.sendToUser(username, env)
	}
}

func (cs *ChatServer) handleChatMessage(c *Client, p chatMessagePayload) {
	if p.Room == "" || p.Message == "" || p.From == "" {
		cs.log.Printf("malformed send_chat_message event from connection %s", c.id)
		return
	}

	now := Now()
	msg := database.Message{
		Room:         p.Room,
		Sender:       p.From,
		Content:      p.Message,
		MessageClass: "text_message",
		Reactions:    types.Reactions{},
		Status:       types.StatusSent,
		CreatedAt:    now,
	}
	if p.Reply != nil {
		msg.ReplyToId = p.Reply.MessageId
		msg.ReplyContent = p.Reply.Message
		msg.ReplySender = p.Reply.Sender
	}

	id, err := cs.db.CreateMessage(msg)
	if err != nil {
		cs.log.Println("save chat message:", err)
		c.queueMessage(evError("failed to save message"))
		return
	}

	status := types.StatusSent
	deliveredTo := cs.onlineRecipients(p.Room, p.From)
	if len(deliveredTo) > 0 {
		promoted, err := cs.db.MarkMessageDelivered(id)
		if err != nil {
			cs.log.Printf("mark message %d delivered: %v", id, err)
			c.queueMessage(evError("failed to update message status"))
		} else if promoted {
			status = types.StatusDelivered
			cs.sendToUser(p.From, &Envelope{Event: EventMessageDelivered, Data: messageDeliveredEvent{
				MessageId:   id,
				Status:      status,
				DeliveredTo: deliveredTo,
				Timestamp:   now,
			}})
		}
	}

	cs.broadcastRoom(p.Room, nil, &Envelope{Event: EventReceiveChatMessage, Data: chatMessageEvent{
		From:         p.From,
		Message:      p.Message,
		Timestamp:    now,
		ReplyToId:    msg.ReplyToId,
		ReplyContent: msg.ReplyContent,
		ReplySender:  msg.ReplySender,
		MessageId:    id,
		Status:       status,
		DeliveredTo:  deliveredTo,
	}})

	cs.globalNotification(p.From, p.Message, p.Room, "text")
	cs.stats.Incr(MetricChatMessages)
}

func (cs *ChatServer) handleAudioMessage(c *Client, p audioMessagePayload) {
	if p.Room == "" || p.From == "" || p.Blob == "" {
		cs.log.Printf("malformed audio_message event from connection %s", c.id)
		return
	}

	b64audio := strings.TrimPrefix(p.Blob, audioDataPrefix)
	now := Now()
	timestamp := p.Timestamp
	if timestamp == 0 {
		timestamp = now.UnixMilli()
	}

	id, err := cs.db.CreateAudioMessage(database.AudioMessage{
		Room:      p.Room,
		Sender:    p.From,
		AudioData: b64audio,
		Reactions: types.Reactions{},
		Status:    types.StatusSent,
		CreatedAt: now,
	})
	if err != nil {
		cs.log.Println("save audio message:", err)
		c.queueMessage(evError("failed to save audio message"))
		return
	}

	status := types.StatusSent
	deliveredTo := cs.onlineRecipients(p.Room, p.From)
	if len(deliveredTo) > 0 {
		promoted, err := cs.db.MarkAudioMessageDelivered(id)
		if err != nil {
			cs.log.Printf("mark audio message %d delivered: %v", id, err)
			c.queueMessage(evError("failed to update message status"))
		} else if promoted {
			status = types.StatusDelivered
			cs.sendToUser(p.From, &Envelope{Event: EventMessageDelivered, Data: messageDeliveredEvent{
				MessageId:   id,
				Status:      status,
				DeliveredTo: deliveredTo,
				Timestamp:   now,
				Type:        "audio",
			}})
		}
	}

	cs.broadcastRoom(p.Room, nil, &Envelope{Event: EventAudioMessage, Data: audioMessageEvent{
		From:        p.From,
		Blob:        audioDataPrefix + b64audio,
		Timestamp:   timestamp,
		MessageId:   id,
		Status:      status,
		DeliveredTo: deliveredTo,
	}})

	cs.stats.Incr(MetricAudioMessages)
}

// promoteDeliveries flips every sent message addressed to username over to
// delivered, batching one messages_delivered notice per original sender.
// Runs when a user's presence is (re)established.
func (cs *ChatServer) promoteDeliveries(username string) {
	roomKeys, err := cs.db.DistinctRooms()
	if err != nil {
		cs.log.Println("list rooms for delivery promotion:", err)
		return
	}

	bySender := make(map[string][]int)
	var senders []string
	record := func(sender string, id int) {
		if _, ok := bySender[sender]; !ok {
			senders = append(senders, sender)
		}
		bySender[sender] = append(bySender[sender], id)
	}

	for _, room := range roomKeys {
		if !slices.Contains(RoomParticipants(room), username) {
			continue
		}

		msgs, err := cs.db.ListSentMessagesFromOthers(room, username)
		if err != nil {
			cs.log.Printf("list sent messages in %q: %v", room, err)
			continue
		}
		for _, msg := range msgs {
			promoted, err := cs.db.MarkMessageDelivered(msg.Id)
			if err != nil {
				cs.log.Printf("mark message %d delivered: %v", msg.Id, err)
				continue
			}
			if promoted {
				record(msg.Sender, msg.Id)
			}
		}

		audioMsgs, err := cs.db.ListSentAudioMessagesFromOthers(room, username)
		if err != nil {
			cs.log.Printf("list sent audio messages in %q: %v", room, err)
			continue
		}
		for _, msg := range audioMsgs {
			promoted, err := cs.db.MarkAudioMessageDelivered(msg.Id)
			if err != nil {
				cs.log.Printf("mark audio message %d delivered: %v", msg.Id, err)
				continue
			}
			if promoted {
				record(msg.Sender, msg.Id)
			}
		}
	}

	if len(bySender) == 0 {
		return
	}

	now := Now()
	for _, sender := range senders {
		cs.sendToUser(sender, &Envelope{Event: EventMessagesDelivered, Data: messagesDeliveredEvent{
			MessageIds:  bySender[sender],
			DeliveredTo: username,
			Timestamp:   now,
		}})
	}
	cs.log.Printf("promoted %d senders' messages to delivered for %q", len(bySender), username)
}

func (cs *ChatServer) handleMarkSeen(c *Client, p markSeenPayload) {
	if len(p.MessageIds) == 0 || p.CurrentUser == "" {
		cs.log.Printf("malformed mark_seen event from connection %s", c.id)
		return
	}

	bySender := make(map[string][]int)
	var senders []string
	record := func(sender string, id int) {
		if _, ok := bySender[sender]; !ok {
			senders = append(senders, sender)
		}
		bySender[sender] = append(bySender[sender], id)
	}

	for _, id := range p.MessageIds {
		// an id may live in either store; check both
		msg, err := cs.db.GetMessage(id)
		switch {
		case err == nil:
			if msg.Sender != p.CurrentUser && msg.Status != types.StatusSeen {
				seen, err := cs.db.MarkMessageSeen(id)
				if err != nil {
					cs.log.Printf("mark message %d seen: %v", id, err)
					c.queueMessage(evError(fmt.Sprintf("failed to mark message %d seen", id)))
					continue
				}
				if seen {
					record(msg.Sender, id)
				}
			}
		case !errors.Is(err, sql.ErrNoRows):
			cs.log.Printf("get message %d: %v", id, err)
		}

		audioMsg, err := cs.db.GetAudioMessage(id)
		switch {
		case err == nil:
			if audioMsg.Sender != p.CurrentUser && audioMsg.Status != types.StatusSeen {
				seen, err := cs.db.MarkAudioMessageSeen(id)
				if err != nil {
					cs.log.Printf("mark audio message %d seen: %v", id, err)
					c.queueMessage(evError(fmt.Sprintf("failed to mark message %d seen", id)))
					continue
				}
				if seen {
					record(audioMsg.Sender, id)
				}
			}
		case !errors.Is(err, sql.ErrNoRows):
			cs.log.Printf("get audio message %d: %v", id, err)
		}
	}

	if len(bySender) > 0 {
		now := Now()
		for _, sender := range senders {
			cs.sendToUser(sender, &Envelope{Event: EventMessagesSeen, Data: messagesSeenEvent{
				MessageIds: bySender[sender],
				SeenBy:     p.CurrentUser,
				Timestamp:  now,
				Room:       p.Room,
			}})
		}
	}

	if p.Room != "" {
		if err := cs.db.ResetUnread(p.CurrentUser, p.Room); err != nil {
			cs.log.Printf("reset unread for %q in %q: %v", p.CurrentUser, p.Room, err)
		}
	}
}

func (cs *ChatServer) handleSendFile(c *Client, p sendFilePayload) {
	if p.Token == "" {
		cs.log.Printf("send_file on connection %s missing token", c.id)
		return
	}

	sender, err := cs.auth.Validate(p.Token)
	if err != nil {
		cs.log.Printf("send_file token rejected on connection %s: %v", c.id, err)
		return
	}

	if p.Room == "" || p.FileId == "" || p.FileName == "" || p.FileType == "" || p.FileSize == 0 || p.FileUrl == "" {
		cs.log.Printf("send_file on connection %s missing file data", c.id)
		return
	}

	ext := p.FileExt
	if ext == "" {
		if i := strings.LastIndex(p.FileName, "."); i >= 0 {
			ext = p.FileName[i+1:]
		} else if i := strings.LastIndex(p.FileType, "/"); i >= 0 {
			ext = p.FileType[i+1:]
		}
	}

	// refuse to broadcast a reference to an upload that never landed
	if !cs.files.Exists(p.FileId, ext) {
		cs.log.Printf("send_file: upload %s.%s not found", p.FileId, ext)
		return
	}

	now := Now()
	id, err := cs.db.CreateMessage(database.Message{
		Room:         p.Room,
		Sender:       sender,
		MessageClass: "file_message",
		FileId:       p.FileId,
		FileName:     p.FileName,
		FileType:     p.FileType,
		FileSize:     p.FileSize,
		FileUrl:      p.FileUrl,
		Reactions:    types.Reactions{},
		Status:       types.StatusSent,
		CreatedAt:    now,
	})
	if err != nil {
		cs.log.Println("save file message:", err)
		c.queueMessage(evError("failed to save file message"))
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: EventFileMessage, Data: fileMessageEvent{
		Sender:    sender,
		Room:      p.Room,
		FileId:    p.FileId,
		FileName:  p.FileName,
		FileType:  p.FileType,
		FileSize:  p.FileSize,
		FileUrl:   p.FileUrl,
		Timestamp: now,
		MessageId: id,
	}})
}

// handleLegacyMessage serves the combined text/file "message" event kept
// for older clients. The sender is the connection's registered identity.
func (cs *ChatServer) handleLegacyMessage(c *Client, p legacyMessagePayload) {
	sender, ok := cs.presence.Username(c.id)
	if !ok {
		cs.log.Printf("message event on unregistered connection %s", c.id)
		return
	}

	content := p.Message
	messageClass := "text_message"
	if p.FileId != "" && p.FileUrl != "" {
		messageClass = "file_message"
		if content == "" {
			content = "[File] " + p.FileName
		}
	}

	if p.Room == "" || (content == "" && p.FileId == "") {
		cs.log.Printf("malformed message event from connection %s", c.id)
		return
	}

	now := Now()
	id, err := cs.db.CreateMessage(database.Message{
		Room:         p.Room,
		Sender:       sender,
		Content:      content,
		ReplyToId:    p.ReplyToMessageId,
		MessageClass: messageClass,
		FileId:       p.FileId,
		FileName:     p.FileName,
		FileType:     p.FileType,
		FileSize:     p.FileSize,
		FileUrl:      p.FileUrl,
		Reactions:    types.Reactions{},
		Status:       types.StatusSent,
		CreatedAt:    now,
	})
	if err != nil {
		cs.log.Println("save message:", err)
		c.queueMessage(evError("failed to save message"))
		return
	}

	cs.broadcastRoom(p.Room, nil, &Envelope{Event: EventMessage, Data: legacyMessageEvent{
		Sender:       sender,
		Room:         p.Room,
		Message:      content,
		Timestamp:    now,
		ReplyToId:    p.ReplyToMessageId,
		FileId:       p.FileId,
		FileName:     p.FileName,
		FileType:     p.FileType,
		FileSize:     p.FileSize,
		FileUrl:      p.FileUrl,
		MessageClass: messageClass,
		MessageId:    id,
	}})
	cs.stats.Incr(MetricChatMessages)
}

func (cs *ChatServer) handleCallChatMessage(c *Client, p chatMessagePayload) {
	if p.Room == "" || p.Message == "" || p.From == "" {
		cs.log.Printf("malformed call_chat_message event from connection %s", c.id)
		return
	}

	now := Now()
	if _, err := cs.db.CreateMessage(database.Message{
		Room:      p.Room,
		Sender:    p.From,
		Content:   p.Message,
		Reactions: types.Reactions{},
		Status:    types.StatusSent,
		CreatedAt: now,
	}); err != nil {
		cs.log.Println("save call chat message:", err)
		c.queueMessage(evError("failed to save message"))
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: EventCallChatMessage, Data: map[string]any{
		"from":      p.From,
		"message":   p.Message,
		"timestamp": now,
	}})

	cs.globalNotification(p.From, p.Message, p.Room, "text")
}

// AddReaction records username's emoji on whichever store holds the id
// (audio first), persists it, and broadcasts the full updated mapping to
// the message's room. Re-adding overwrites the previous reaction.
func (cs *ChatServer) AddReaction(messageId int, username, emoji string) (types.Reactions, error) {
	audioMsg, err := cs.db.GetAudioMessage(messageId)
	if err == nil {
		reactions := audioMsg.Reactions
		if reactions == nil {
			reactions = types.Reactions{}
		}
		reactions[username] = emoji

		if err := cs.db.UpdateAudioMessageReactions(messageId, reactions); err != nil {
			return nil, err
		}
		cs.broadcastRoom(audioMsg.Room, nil, evReactionsUpdated(messageId, reactions))
		return reactions, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	msg, err := cs.db.GetMessage(messageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	reactions := msg.Reactions
	if reactions == nil {
		reactions = types.Reactions{}
	}
	reactions[username] = emoji

	if err := cs.db.UpdateMessageReactions(messageId, reactions); err != nil {
		return nil, err
	}
	cs.broadcastRoom(msg.Room, nil, evReactionsUpdated(messageId, reactions))
	return reactions, nil
}

// RemoveReaction deletes username's entry from the reactions mapping.
// Removing a reaction that was never added is a no-op, not an error.
func (cs *ChatServer) RemoveReaction(messageId int, username string) (types.Reactions, error) {
	audioMsg, err := cs.db.GetAudioMessage(messageId)
	if err == nil {
		reactions := audioMsg.Reactions
		if reactions == nil {
			reactions = types.Reactions{}
		}
		delete(reactions, username)

		if err := cs.db.UpdateAudioMessageReactions(messageId, reactions); err != nil {
			return nil, err
		}
		cs.broadcastRoom(audioMsg.Room, nil, evReactionsUpdated(messageId, reactions))
		return reactions, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	msg, err := cs.db.GetMessage(messageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	reactions := msg.Reactions
	if reactions == nil {
		reactions = types.Reactions{}
	}
	delete(reactions, username)

	if err := cs.db.UpdateMessageReactions(messageId, reactions); err != nil {
		return nil, err
	}
	cs.broadcastRoom(msg.Room, nil, evReactionsUpdated(messageId, reactions))
	return reactions, nil
}

// BroadcastMessageDeleted announces a deletion to the message's room.
func (cs *ChatServer) BroadcastMessageDeleted(room string, messageId int) {
	cs.broadcastRoom(room, nil, evMessageDeleted(messageId))
}

// BroadcastMessageEdited announces an edit to the message's room.
func (cs *ChatServer) BroadcastMessageEdited(msg database.Message) {
	cs.broadcastRoom(msg.Room, nil, evMessageEdited(msg.Id, msg.Content, msg.CreatedAt))
}

// BroadcastAllMessagesDeleted tells every connection the history is gone.
func (cs *ChatServer) BroadcastAllMessagesDeleted() {
	env := &Envelope{Event: EventAllMessagesDeleted}

	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	for c := range cs.clients {
		c.queueMessage(env)
	}
}
