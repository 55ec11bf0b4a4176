package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sort"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/peerchat/peerchat/internal/server"
	"github.com/peerchat/peerchat/internal/types"
)

type ReactRequest struct {
	MessageId int    `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type RemoveReactionRequest struct {
	MessageId int `json:"message_id"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

func (s *PeerChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// currentUsername resolves the authenticated account's username from the
// request context.
func (s *PeerChatApp) currentUsername(r *http.Request) (string, *ApiError) {
	userId, ok := UserId(r.Context())
	if !ok {
		return "", NewUnauthorizedError()
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", NewUnauthorizedError()
		}
		return "", NewInternalServerError(err)
	}

	return user.Username, nil
}

func (s *PeerChatApp) getUsers(w http.ResponseWriter, r *http.Request) {
	roster, err := s.cs.Roster()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roster)
}

func (s *PeerChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.db.ListRoomMessages(room)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	audioMessages, err := s.db.ListRoomAudioMessages(room)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	history := make([]types.HistoryMessage, 0, len(messages)+len(audioMessages))
	for _, msg := range messages {
		history = append(history, types.HistoryMessage{
			Type:         "text",
			MessageId:    msg.Id,
			Sender:       msg.Sender,
			Content:      msg.Content,
			Timestamp:    msg.CreatedAt,
			Room:         msg.Room,
			FileId:       msg.FileId,
			FileName:     msg.FileName,
			FileType:     msg.FileType,
			FileSize:     msg.FileSize,
			FileUrl:      msg.FileUrl,
			ReplyToId:    msg.ReplyToId,
			ReplyContent: msg.ReplyContent,
			ReplySender:  msg.ReplySender,
			MessageClass: msg.MessageClass,
			Reactions:    msg.Reactions,
			Status:       msg.Status,
		})
	}
	for _, msg := range audioMessages {
		history = append(history, types.HistoryMessage{
			Type:      "audio",
			MessageId: msg.Id,
			Sender:    msg.Sender,
			AudioData: msg.AudioData,
			Timestamp: msg.CreatedAt,
			Room:      msg.Room,
			Reactions: msg.Reactions,
			Status:    msg.Status,
		})
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})

	s.writeJson(w, http.StatusOK, history)
}

func (s *PeerChatApp) getUnreadCounts(w http.ResponseWriter, r *http.Request) {
	username, apiErr := s.currentUsername(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	counts, err := s.db.UnreadCounts(username)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, counts)
}

func (s *PeerChatApp) reactMessage(w http.ResponseWriter, r *http.Request) {
	username, apiErr := s.currentUsername(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageId == 0 || req.Emoji == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	reactions, err := s.cs.AddReaction(req.MessageId, username, req.Emoji)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, server.ErrMessageNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"reactions": reactions})
}

func (s *PeerChatApp) removeReaction(w http.ResponseWriter, r *http.Request) {
	username, apiErr := s.currentUsername(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	var req RemoveReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	reactions, err := s.cs.RemoveReaction(req.MessageId, username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, server.ErrMessageNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"reactions": reactions})
}

func (s *PeerChatApp) editMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.UpdateMessageContent(id, req.Content)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.BroadcastMessageEdited(msg)

	s.writeJson(w, http.StatusOK, map[string]any{
		"id":        msg.Id,
		"content":   msg.Content,
		"timestamp": msg.CreatedAt,
	})
}

func (s *PeerChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	username, apiErr := s.currentUsername(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.GetMessage(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// only the author may delete a message
	if msg.Sender != username {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteMessage(id); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.BroadcastMessageDeleted(msg.Room, id)

	s.writeJson(w, http.StatusOK, map[string]any{"id": id})
}

func (s *PeerChatApp) purgeMessages(w http.ResponseWriter, r *http.Request) {
	numMessages, numAudio, err := s.db.DeleteAllMessages()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.BroadcastAllMessagesDeleted()

	s.writeJson(w, http.StatusOK, map[string]any{
		"deleted_messages":       numMessages,
		"deleted_audio_messages": numAudio,
	})
}

func (s *PeerChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	connId, err := s.generateShortId()
	if err != nil {
		s.log.Println("generateShortId:", err)
		conn.Close()
		return
	}

	client := server.NewClient(connId, conn, s.cs, s.log)
	s.cs.AddClient(client)

	go client.Write()
	go client.Read()
}
