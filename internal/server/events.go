package server

import (
	"encoding/json"
	"time"

	"github.com/peerchat/peerchat/internal/types"
)

// Event names are the wire contract shared with the web and mobile
// clients; do not rename.
const (
	// client -> server
	EventAuthenticate    = "authenticate"
	EventRegister        = "register"
	EventJoin            = "join"
	EventLeave           = "leave"
	EventCallInitiate    = "call_initiate"
	EventCallResponse    = "call_response"
	EventSignal          = "signal"
	EventSendFile        = "send_file"
	EventMessage         = "message"
	EventSendChatMessage = "send_chat_message"
	EventMarkSeen        = "mark_seen"
	EventCallChatMessage = "call_chat_message"
	EventLiveTyping      = "live_typing"
	EventCallChatTyping  = "call_chat_typing"
	EventCallChatClear   = "call_chat_clear"
	EventSendNotify      = "send_notification"
	EventSendColor       = "send_color"
	EventResetBgColor    = "reset_bg_color"
	EventCallEnded       = "call_ended"
	EventDeclineCall     = "decline_call"
	EventAudioMessage    = "audio_message"

	// server -> client
	EventForceLogout        = "force_logout"
	EventUserList           = "user_list"
	EventRoomJoined         = "room_joined"
	EventCallOffer          = "call_offer"
	EventCallError          = "call_error"
	EventFileMessage        = "file_message"
	EventReceiveChatMessage = "receive_chat_message"
	EventMessageDelivered   = "message_delivered"
	EventMessagesDelivered  = "messages_delivered"
	EventMessagesSeen       = "messages_seen"
	EventGlobalNotification = "global_message_notification"
	EventReceiveNotify      = "receive_notification"
	EventReceiveColor       = "receive_color"
	EventReceiveResetBg     = "receive_reset_bg_color"
	EventCallDeclined       = "call_declined"
	EventReactionsUpdated   = "message_reactions_updated"
	EventMessageDeleted     = "chat_message_deleted"
	EventMessageEdited      = "message_edited"
	EventAllMessagesDeleted = "all_messages_deleted"
	EventError              = "error"
)

// clientFrame is an inbound wire frame. Data stays raw until the event
// name selects a payload type; anything that fails to decode into that
// type is rejected at the boundary.
type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Envelope is an outbound wire frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type registerPayload struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type roomPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

type callInitiatePayload struct {
	Target   string `json:"target"`
	CallType string `json:"call_type"`
	From     string `json:"from"`
	Room     string `json:"room"`
}

type callResponsePayload struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Accepted *bool  `json:"accepted"`
	RoomId   string `json:"room_id"`
	CallType string `json:"call_type"`
}

type signalPayload struct {
	Room   string          `json:"room"`
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

type replyRef struct {
	MessageId int    `json:"message_id"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
}

type chatMessagePayload struct {
	Room    string    `json:"room"`
	Message string    `json:"message"`
	From    string    `json:"from"`
	Reply   *replyRef `json:"reply,omitempty"`
}

type markSeenPayload struct {
	MessageIds  []int  `json:"message_ids"`
	CurrentUser string `json:"current_user"`
	Sender      string `json:"sender,omitempty"`
	Room        string `json:"room"`
}

type typingPayload struct {
	Room string `json:"room"`
	From string `json:"from"`
	Text string `json:"text"`
}

type roomSenderPayload struct {
	Room string `json:"room"`
	From string `json:"from"`
}

type colorPayload struct {
	Room  string `json:"room"`
	From  string `json:"from"`
	Color string `json:"color"`
}

type callEndedPayload struct {
	Room     string `json:"room"`
	From     string `json:"from"`
	Duration string `json:"duration"`
	CallType string `json:"callType"`
}

type audioMessagePayload struct {
	Room      string `json:"room"`
	From      string `json:"from"`
	Blob      string `json:"blob"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type sendFilePayload struct {
	Token    string `json:"token"`
	Room     string `json:"room"`
	FileId   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	FileUrl  string `json:"file_url"`
	FileExt  string `json:"file_ext,omitempty"`
}

type legacyMessagePayload struct {
	Room             string `json:"room"`
	Message          string `json:"message"`
	ReplyToMessageId int    `json:"reply_to_message_id,omitempty"`
	FileId           string `json:"file_id,omitempty"`
	FileName         string `json:"file_name,omitempty"`
	FileType         string `json:"file_type,omitempty"`
	FileSize         int64  `json:"file_size,omitempty"`
	FileUrl          string `json:"file_url,omitempty"`
}

func evForceLogout(reason string) *Envelope {
	return &Envelope{Event: EventForceLogout, Data: map[string]string{"reason": reason}}
}

func evUserList(users []types.UserStatus) *Envelope {
	return &Envelope{Event: EventUserList, Data: users}
}

func evRoomJoined(room, peer string) *Envelope {
	return &Envelope{Event: EventRoomJoined, Data: map[string]string{
		"room_id": room,
		"peer":    peer,
	}}
}

func evCallOffer(from, callType, room string) *Envelope {
	return &Envelope{Event: EventCallOffer, Data: map[string]string{
		"from":      from,
		"call_type": callType,
		"room_id":   room,
	}}
}

func evCallError(message string) *Envelope {
	return &Envelope{Event: EventCallError, Data: map[string]string{"message": message}}
}

func evCallResponse(from string, accepted bool, room, callType string) *Envelope {
	return &Envelope{Event: EventCallResponse, Data: map[string]any{
		"from":      from,
		"accepted":  accepted,
		"room_id":   room,
		"call_type": callType,
	}}
}

func evSignal(from string, signal json.RawMessage) *Envelope {
	return &Envelope{Event: EventSignal, Data: map[string]any{
		"from":   from,
		"signal": signal,
	}}
}

func evError(message string) *Envelope {
	return &Envelope{Event: EventError, Data: map[string]string{"message": message}}
}

type chatMessageEvent struct {
	From         string              `json:"from"`
	Message      string              `json:"message"`
	Timestamp    time.Time           `json:"timestamp"`
	ReplyToId    int                 `json:"reply_to_message_id,omitempty"`
	ReplyContent string              `json:"reply_content,omitempty"`
	ReplySender  string              `json:"reply_sender,omitempty"`
	MessageId    int                 `json:"message_id"`
	Status       types.MessageStatus `json:"status"`
	DeliveredTo  []string            `json:"delivered_to"`
}

type messageDeliveredEvent struct {
	MessageId   int                 `json:"message_id"`
	Status      types.MessageStatus `json:"status"`
	DeliveredTo []string            `json:"delivered_to"`
	Timestamp   time.Time           `json:"timestamp"`
	Type        string              `json:"type,omitempty"`
}

type messagesDeliveredEvent struct {
	MessageIds  []int     `json:"message_ids"`
	DeliveredTo string    `json:"delivered_to"`
	Timestamp   time.Time `json:"timestamp"`
}

type messagesSeenEvent struct {
	MessageIds []int     `json:"message_ids"`
	SeenBy     string    `json:"seen_by"`
	Timestamp  time.Time `json:"timestamp"`
	Room       string    `json:"room"`
}

type globalNotificationEvent struct {
	From        string    `json:"from"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Room        string    `json:"room"`
	MessageType string    `json:"message_type"`
}

type audioMessageEvent struct {
	From        string              `json:"from"`
	Blob        string              `json:"blob"`
	Timestamp   int64               `json:"timestamp"`
	MessageId   int                 `json:"message_id"`
	Status      types.MessageStatus `json:"status"`
	DeliveredTo []string            `json:"delivered_to"`
}

type fileMessageEvent struct {
	Sender    string    `json:"sender"`
	Room      string    `json:"room"`
	FileId    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	FileUrl   string    `json:"file_url"`
	Timestamp time.Time `json:"timestamp"`
	MessageId int       `json:"message_id"`
}

type legacyMessageEvent struct {
	Sender       string    `json:"sender"`
	Room         string    `json:"room"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	ReplyToId    int       `json:"reply_to_message_id,omitempty"`
	FileId       string    `json:"file_id,omitempty"`
	FileName     string    `json:"file_name,omitempty"`
	FileType     string    `json:"file_type,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	FileUrl      string    `json:"file_url,omitempty"`
	MessageClass string    `json:"message_class"`
	MessageId    int       `json:"message_id"`
}

func evReactionsUpdated(messageId int, reactions types.Reactions) *Envelope {
	return &Envelope{Event: EventReactionsUpdated, Data: map[string]any{
		"message_id": messageId,
		"reactions":  reactions,
	}}
}

func evMessageDeleted(messageId int) *Envelope {
	return &Envelope{Event: EventMessageDeleted, Data: map[string]any{"message_id": messageId}}
}

func evMessageEdited(messageId int, content string, timestamp time.Time) *Envelope {
	return &Envelope{Event: EventMessageEdited, Data: map[string]any{
		"messageId":  messageId,
		"newContent": content,
		"timestamp":  timestamp,
	}}
}

// Now returns the current UTC time rounded to milliseconds, the precision
// carried on the wire.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
