package database

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/peerchat/peerchat/internal/types"
)

const messageColumns = "id, room, sender, content, reply_to_id, reply_content, reply_sender, " +
	"message_class, file_id, file_name, file_type, file_size, file_url, reactions, status, created_at"

const audioMessageColumns = "id, room, sender, audio_data, reactions, status, created_at"

func encodeReactions(r types.Reactions) string {
	if r == nil {
		return "{}"
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeReactions(s string) types.Reactions {
	r := make(types.Reactions)
	if s == "" {
		return r
	}
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return make(types.Reactions)
	}
	return r
}

func (db *PgRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
	)

	return u, err
}

func (db *PgRepository) ListUsernames() ([]string, error) {
	rows, err := db.conn.Query("SELECT username FROM accounts ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		usernames = append(usernames, name)
	}

	return usernames, rows.Err()
}

func (db *PgRepository) CreateMessage(msg Message) (int, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (room, sender, content, reply_to_id, reply_content, reply_sender, "+
			"message_class, file_id, file_name, file_type, file_size, file_url, reactions, status, created_at) "+
			"VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id",
		msg.Room,
		msg.Sender,
		msg.Content,
		msg.ReplyToId,
		msg.ReplyContent,
		msg.ReplySender,
		msg.MessageClass,
		msg.FileId,
		msg.FileName,
		msg.FileType,
		msg.FileSize,
		msg.FileUrl,
		encodeReactions(msg.Reactions),
		string(msg.Status),
		msg.CreatedAt,
	)

	var id int
	err := res.Scan(&id)
	return id, err
}

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var (
		m         Message
		replyToId sql.NullInt64
		reactions string
		status    string
	)
	err := row.Scan(
		&m.Id,
		&m.Room,
		&m.Sender,
		&m.Content,
		&replyToId,
		&m.ReplyContent,
		&m.ReplySender,
		&m.MessageClass,
		&m.FileId,
		&m.FileName,
		&m.FileType,
		&m.FileSize,
		&m.FileUrl,
		&reactions,
		&status,
		&m.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	m.ReplyToId = int(replyToId.Int64)
	m.Reactions = decodeReactions(reactions)
	m.Status = types.MessageStatus(status)
	return m, nil
}

func (db *PgRepository) GetMessage(id int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages WHERE id = $1 LIMIT 1", id,
	)
	return scanMessage(row)
}

func (db *PgRepository) UpdateMessageContent(id int, content string) (Message, error) {
	_, err := db.conn.Exec(
		"UPDATE messages SET content = $2 WHERE id = $1", id, content,
	)
	if err != nil {
		return Message{}, err
	}
	return db.GetMessage(id)
}

func (db *PgRepository) UpdateMessageReactions(id int, reactions types.Reactions) error {
	res, err := db.conn.Exec(
		"UPDATE messages SET reactions = $2 WHERE id = $1", id, encodeReactions(reactions),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkMessageDelivered advances status from sent to delivered. The status
// guard in the WHERE clause makes the transition a compare-and-swap, so
// concurrent promotions never move status backward.
func (db *PgRepository) MarkMessageDelivered(id int) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE messages SET status = 'delivered' WHERE id = $1 AND status = 'sent'", id,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkMessageSeen advances status to seen from any earlier state. Returns
// false when the row is absent or already seen.
func (db *PgRepository) MarkMessageSeen(id int) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE messages SET status = 'seen' WHERE id = $1 AND status <> 'seen'", id,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) DeleteMessage(id int) error {
	res, err := db.conn.Exec("DELETE FROM messages WHERE id = $1", id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *PgRepository) listMessages(query string, args ...any) ([]Message, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (db *PgRepository) ListRoomMessages(room string) ([]Message, error) {
	return db.listMessages(
		"SELECT "+messageColumns+" FROM messages WHERE room = $1 ORDER BY created_at ASC", room,
	)
}

func (db *PgRepository) ListSentMessagesFromOthers(room, username string) ([]Message, error) {
	return db.listMessages(
		"SELECT "+messageColumns+" FROM messages "+
			"WHERE room = $1 AND sender <> $2 AND status = 'sent' ORDER BY created_at ASC",
		room, username,
	)
}

func (db *PgRepository) DistinctRooms() ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT room FROM messages UNION SELECT room FROM audio_messages",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roomKeys []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, err
		}
		roomKeys = append(roomKeys, room)
	}

	return roomKeys, rows.Err()
}

func (db *PgRepository) CreateAudioMessage(msg AudioMessage) (int, error) {
	res := db.conn.QueryRow(
		"INSERT INTO audio_messages (room, sender, audio_data, reactions, status, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		msg.Room,
		msg.Sender,
		msg.AudioData,
		encodeReactions(msg.Reactions),
		string(msg.Status),
		msg.CreatedAt,
	)

	var id int
	err := res.Scan(&id)
	return id, err
}

func scanAudioMessage(row interface{ Scan(...any) error }) (AudioMessage, error) {
	var (
		m         AudioMessage
		reactions string
		status    string
	)
	err := row.Scan(
		&m.Id,
		&m.Room,
		&m.Sender,
		&m.AudioData,
		&reactions,
		&status,
		&m.CreatedAt,
	)
	if err != nil {
		return AudioMessage{}, err
	}

	m.Reactions = decodeReactions(reactions)
	m.Status = types.MessageStatus(status)
	return m, nil
}

func (db *PgRepository) GetAudioMessage(id int) (AudioMessage, error) {
	row := db.conn.QueryRow(
		"SELECT "+audioMessageColumns+" FROM audio_messages WHERE id = $1 LIMIT 1", id,
	)
	return scanAudioMessage(row)
}

func (db *PgRepository) UpdateAudioMessageReactions(id int, reactions types.Reactions) error {
	res, err := db.conn.Exec(
		"UPDATE audio_messages SET reactions = $2 WHERE id = $1", id, encodeReactions(reactions),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *PgRepository) MarkAudioMessageDelivered(id int) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE audio_messages SET status = 'delivered' WHERE id = $1 AND status = 'sent'", id,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) MarkAudioMessageSeen(id int) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE audio_messages SET status = 'seen' WHERE id = $1 AND status <> 'seen'", id,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) listAudioMessages(query string, args ...any) ([]AudioMessage, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []AudioMessage
	for rows.Next() {
		m, err := scanAudioMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (db *PgRepository) ListRoomAudioMessages(room string) ([]AudioMessage, error) {
	return db.listAudioMessages(
		"SELECT "+audioMessageColumns+" FROM audio_messages WHERE room = $1 ORDER BY created_at ASC", room,
	)
}

func (db *PgRepository) ListSentAudioMessagesFromOthers(room, username string) ([]AudioMessage, error) {
	return db.listAudioMessages(
		"SELECT "+audioMessageColumns+" FROM audio_messages "+
			"WHERE room = $1 AND sender <> $2 AND status = 'sent' ORDER BY created_at ASC",
		room, username,
	)
}

// IncrementUnread bumps the (username, room) counter by one, creating it at
// one if absent. The upsert keeps the increment atomic under concurrent
// sends to the same room.
func (db *PgRepository) IncrementUnread(username, room string) error {
	_, err := db.conn.Exec(
		"INSERT INTO unread_counters (username, room, count) VALUES ($1, $2, 1) "+
			"ON CONFLICT (username, room) DO UPDATE SET count = unread_counters.count + 1",
		username, room,
	)
	return err
}

func (db *PgRepository) ResetUnread(username, room string) error {
	_, err := db.conn.Exec(
		"UPDATE unread_counters SET count = 0 WHERE username = $1 AND room = $2",
		username, room,
	)
	return err
}

func (db *PgRepository) UnreadCounts(username string) (map[string]int, error) {
	rows, err := db.conn.Query(
		"SELECT room, count FROM unread_counters WHERE username = $1", username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			room  string
			count int
		)
		if err := rows.Scan(&room, &count); err != nil {
			return nil, err
		}
		counts[room] = count
	}

	return counts, rows.Err()
}

func (db *PgRepository) DeleteAllMessages() (int64, int64, error) {
	res, err := db.conn.Exec("DELETE FROM messages")
	if err != nil {
		return 0, 0, err
	}
	numMessages, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	res, err = db.conn.Exec("DELETE FROM audio_messages")
	if err != nil {
		return numMessages, 0, err
	}
	numAudio, err := res.RowsAffected()
	if err != nil {
		return numMessages, 0, err
	}

	return numMessages, numAudio, nil
}
