package server

import (
	"encoding/json"
	"fmt"
)

// Call signaling keeps no per-attempt state on the server: every handler
// is a validated relay. An unanswered offer times out at the UI, not here,
// and a routing miss degrades to a best-effort error notice or a drop.

func (cs *ChatServer) handleCallInitiate(c *Client, p callInitiatePayload) {
	if p.Target == "" || p.CallType == "" || p.From == "" || p.Room == "" {
		cs.log.Printf("call_initiate missing data: target=%q type=%q from=%q room=%q",
			p.Target, p.CallType, p.From, p.Room)
		cs.sendToUser(p.From, evCallError("Call initiation failed due to missing data."))
		return
	}

	if !cs.sendToUser(p.Target, evCallOffer(p.From, p.CallType, p.Room)) {
		cs.log.Printf("call_initiate: target %q not online", p.Target)
		cs.sendToUser(p.From, evCallError(fmt.Sprintf("User %s is not online.", p.Target)))
		return
	}

	cs.stats.Incr(MetricCallOffers)
}

func (cs *ChatServer) handleCallResponse(c *Client, p callResponsePayload) {
	if p.To == "" || p.From == "" || p.RoomId == "" || p.Accepted == nil {
		cs.log.Printf("call_response missing data: to=%q from=%q room=%q", p.To, p.From, p.RoomId)
		cs.sendToUser(p.From, evCallError("Call response failed due to missing data."))
		return
	}

	// if the original caller went offline the response is dropped; there
	// is no call to resume
	if !cs.sendToUser(p.To, evCallResponse(p.From, *p.Accepted, p.RoomId, p.CallType)) {
		cs.log.Printf("call_response: original caller %q not online", p.To)
	}
}

func (cs *ChatServer) handleSignal(c *Client, p signalPayload) {
	if p.Room == "" || len(p.Signal) == 0 || p.From == "" {
		cs.log.Printf("malformed signal event from connection %s", c.id)
		return
	}

	var inner struct {
		Target string `json:"target"`
	}
	// target rides inside the opaque signal payload
	if err := json.Unmarshal(p.Signal, &inner); err != nil {
		cs.log.Printf("malformed signal payload from connection %s: %v", c.id, err)
		return
	}

	if inner.Target != "" {
		if !cs.sendToUser(inner.Target, evSignal(p.From, p.Signal)) {
			cs.log.Printf("signal: target %q not online", inner.Target)
			return
		}
	} else {
		cs.broadcastRoom(p.Room, c, evSignal(p.From, p.Signal))
	}

	cs.stats.Incr(MetricSignalsRelayed)
}

func (cs *ChatServer) handleCallEnded(c *Client, p callEndedPayload) {
	if p.Room == "" || p.From == "" {
		cs.log.Printf("malformed call_ended event from connection %s", c.id)
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: EventCallEnded, Data: map[string]string{
		"from":     p.From,
		"duration": p.Duration,
		"callType": p.CallType,
	}})
}

func (cs *ChatServer) handleDeclineCall(c *Client, p roomSenderPayload) {
	if p.Room == "" || p.From == "" {
		cs.log.Printf("malformed decline_call event from connection %s", c.id)
		return
	}

	cs.broadcastRoom(p.Room, c, &Envelope{Event: EventCallDeclined, Data: map[string]string{
		"from": p.From,
	}})
}
