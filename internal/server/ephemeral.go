package server

// Ephemeral events are stateless pass-throughs: validate {room, sender},
// relay to the other room members, keep nothing. A dropped ephemeral
// event is not an error.

func (cs *ChatServer) handleTyping(c *Client, event string, p typingPayload) {
	if p.Room == "" || p.From == "" {
		cs.log.Printf("malformed %s event from connection %s", event, c.id)
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: event, Data: map[string]string{
		"from": p.From,
		"text": p.Text,
	}})
}

func (cs *ChatServer) handleCallChatClear(c *Client, p roomSenderPayload) {
	if p.Room == "" || p.From == "" {
		cs.log.Printf("malformed call_chat_clear event from connection %s", c.id)
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: EventCallChatClear, Data: map[string]string{
		"from": p.From,
	}})
}

func (cs *ChatServer) handleSendNotification(c *Client, p roomSenderPayload) {
	if p.Room == "" || p.From == "" {
		cs.log.Printf("malformed send_notification event from connection %s", c.id)
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: EventReceiveNotify, Data: map[string]any{
		"from":      p.From,
		"room":      p.Room,
		"timestamp": Now(),
	}})
}

func (cs *ChatServer) handleSendColor(c *Client, p colorPayload) {
	if p.Room == "" || p.From == "" || p.Color == "" {
		cs.log.Printf("malformed send_color event from connection %s", c.id)
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: EventReceiveColor, Data: map[string]any{
		"from":      p.From,
		"room":      p.Room,
		"color":     p.Color,
		"timestamp": Now(),
	}})
}

func (cs *ChatServer) handleResetBgColor(c *Client, p roomSenderPayload) {
	if p.Room == "" || p.From == "" {
		cs.log.Printf("malformed reset_bg_color event from connection %s", c.id)
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: EventReceiveResetBg, Data: map[string]any{
		"from":      p.From,
		"room":      p.Room,
		"timestamp": Now(),
	}})
}
