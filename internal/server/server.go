package server

import (
	"context"
	"log"
	"sync"

	"github.com/peerchat/peerchat/internal/database"
	"github.com/peerchat/peerchat/internal/stats"
	"github.com/peerchat/peerchat/internal/types"
)

// CredentialValidator checks a presented access credential and resolves it
// to a username. Credential issuance and revocation live outside the core.
type CredentialValidator interface {
	Validate(token string) (string, error)
}

// FileStore answers whether an upload referenced by a file message exists.
// Upload and storage themselves are external collaborators.
type FileStore interface {
	Exists(fileId, ext string) bool
}

const (
	MetricConnections    = "NumConnections"
	MetricOnlineUsers    = "NumOnlineUsers"
	MetricChatMessages   = "NumChatMessages"
	MetricAudioMessages  = "NumAudioMessages"
	MetricCallOffers     = "NumCallOffers"
	MetricSignalsRelayed = "NumSignalsRelayed"
)

type ChatServer struct {
	log      *log.Logger
	db       database.Repository
	stats    stats.StatsProvider
	auth     CredentialValidator
	files    FileStore
	presence *Registry
	router   *RoomRouter

	clients     map[*Client]struct{}
	conns       map[string]*Client
	clientsLock sync.Mutex
}

func NewChatServer(logger *log.Logger, db database.Repository, su stats.StatsProvider, auth CredentialValidator, files FileStore) (*ChatServer, error) {
	cs := &ChatServer{
		log:      logger,
		db:       db,
		stats:    su,
		auth:     auth,
		files:    files,
		presence: NewRegistry(),
		router:   NewRoomRouter(),
		clients:  make(map[*Client]struct{}),
		conns:    make(map[string]*Client),
	}

	for _, name := range []string{
		MetricConnections,
		MetricOnlineUsers,
		MetricChatMessages,
		MetricAudioMessages,
		MetricCallOffers,
		MetricSignalsRelayed,
	} {
		su.RegisterMetric(name)
	}

	return cs, nil
}

// AddClient admits a freshly upgraded connection and answers its implicit
// initial roster request. The connection stays anonymous until it sends a
// register event.
func (cs *ChatServer) AddClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.conns[c.id] = c
	cs.clientsLock.Unlock()

	cs.stats.Incr(MetricConnections)

	roster, err := cs.Roster()
	if err != nil {
		cs.log.Println("roster:", err)
		return
	}
	c.queueMessage(evUserList(roster))
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	delete(cs.conns, c.id)
	cs.stats.Decr(MetricConnections)
}

func (cs *ChatServer) clientById(connId string) *Client {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	return cs.conns[connId]
}

// Roster lists every known account with its live-connection status,
// ordered by username.
func (cs *ChatServer) Roster() ([]types.UserStatus, error) {
	usernames, err := cs.db.ListUsernames()
	if err != nil {
		return nil, err
	}

	online := cs.presence.OnlineUsernames()
	roster := make([]types.UserStatus, 0, len(usernames))
	for _, name := range usernames {
		_, isOnline := online[name]
		roster = append(roster, types.UserStatus{Username: name, Online: isOnline})
	}
	return roster, nil
}

func (cs *ChatServer) broadcastRoster() {
	roster, err := cs.Roster()
	if err != nil {
		cs.log.Println("roster:", err)
		return
	}

	env := evUserList(roster)
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	for c := range cs.clients {
		c.queueMessage(env)
	}
}

// sendToUser routes env to the user's live connection, if any. A routing
// miss is not an error; callers decide whether to degrade or drop.
func (cs *ChatServer) sendToUser(username string, env *Envelope) bool {
	connId, ok := cs.presence.Resolve(username)
	if !ok {
		return false
	}

	c := cs.clientById(connId)
	if c == nil {
		return false
	}
	return c.queueMessage(env)
}

func (cs *ChatServer) broadcastRoom(room string, skip *Client, env *Envelope) {
	for _, c := range cs.router.Members(room) {
		if c == skip {
			continue
		}
		c.queueMessage(env)
	}
}

func (cs *ChatServer) dispatch(c *Client, frame *clientFrame) {
	switch frame.Event {
	case EventAuthenticate:
		var p authenticatePayload
		if c.decode(frame.Data, &p) {
			cs.handleAuthenticate(c, p)
		}
	case EventRegister:
		var p registerPayload
		if c.decode(frame.Data, &p) {
			cs.handleRegister(c, p)
		}
	case EventJoin:
		var p roomPayload
		if c.decode(frame.Data, &p) {
			cs.handleJoin(c, p)
		}
	case EventLeave:
		var p roomPayload
		if c.decode(frame.Data, &p) {
			cs.handleLeave(c, p)
		}
	case EventCallInitiate:
		var p callInitiatePayload
		if c.decode(frame.Data, &p) {
			cs.handleCallInitiate(c, p)
		}
	case EventCallResponse:
		var p callResponsePayload
		if c.decode(frame.Data, &p) {
			cs.handleCallResponse(c, p)
		}
	case EventSignal:
		var p signalPayload
		if c.decode(frame.Data, &p) {
			cs.handleSignal(c, p)
		}
	case EventCallEnded:
		var p callEndedPayload
		if c.decode(frame.Data, &p) {
			cs.handleCallEnded(c, p)
		}
	case EventDeclineCall:
		var p roomSenderPayload
		if c.decode(frame.Data, &p) {
			cs.handleDeclineCall(c, p)
		}
	case EventSendChatMessage:
		var p chatMessagePayload
		if c.decode(frame.Data, &p) {
			cs.handleChatMessage(c, p)
		}
	case EventAudioMessage:
		var p audioMessagePayload
		if c.decode(frame.Data, &p) {
			cs.handleAudioMessage(c, p)
		}
	case EventMarkSeen:
		var p markSeenPayload
		if c.decode(frame.Data, &p) {
			cs.handleMarkSeen(c, p)
		}
	case EventSendFile:
		var p sendFilePayload
		if c.decode(frame.Data, &p) {
			cs.handleSendFile(c, p)
		}
	case EventMessage:
		var p legacyMessagePayload
		if c.decode(frame.Data, &p) {
			cs.handleLegacyMessage(c, p)
		}
	case EventCallChatMessage:
		var p chatMessagePayload
		if c.decode(frame.Data, &p) {
			cs.handleCallChatMessage(c, p)
		}
	case EventLiveTyping:
		var p typingPayload
		if c.decode(frame.Data, &p) {
			cs.handleTyping(c, EventLiveTyping, p)
		}
	case EventCallChatTyping:
		var p typingPayload
		if c.decode(frame.Data, &p) {
			cs.handleTyping(c, EventCallChatTyping, p)
		}
	case EventCallChatClear:
		var p roomSenderPayload
		if c.decode(frame.Data, &p) {
			cs.handleCallChatClear(c, p)
		}
	case EventSendNotify:
		var p roomSenderPayload
		if c.decode(frame.Data, &p) {
			cs.handleSendNotification(c, p)
		}
	case EventSendColor:
		var p colorPayload
		if c.decode(frame.Data, &p) {
			cs.handleSendColor(c, p)
		}
	case EventResetBgColor:
		var p roomSenderPayload
		if c.decode(frame.Data, &p) {
			cs.handleResetBgColor(c, p)
		}
	default:
		cs.log.Printf("unknown event %q on connection %s", frame.Event, c.id)
		c.queueMessage(evError("unknown event"))
	}
}

func (cs *ChatServer) handleAuthenticate(c *Client, p authenticatePayload) {
	if p.Token == "" {
		c.queueMessage(evError("missing token"))
		return
	}

	if _, err := cs.auth.Validate(p.Token); err != nil {
		cs.log.Printf("authenticate failed on connection %s: %v", c.id, err)
		c.queueMessage(evError("authentication failed"))
	}
}

func (cs *ChatServer) handleRegister(c *Client, p registerPayload) {
	if p.Username == "" || p.Token == "" {
		cs.log.Printf("register on connection %s missing username or token", c.id)
		return
	}

	username, err := cs.auth.Validate(p.Token)
	if err != nil || username != p.Username {
		cs.log.Printf("register rejected for %q on connection %s", p.Username, c.id)
		c.queueMessage(evForceLogout("invalid_token"))
		return
	}

	_, wasOnline := cs.presence.Resolve(p.Username)
	if evicted := cs.presence.Register(c.id, p.Username); evicted != "" {
		cs.log.Printf("superseding connection %s for user %q", evicted, p.Username)
	}
	if !wasOnline {
		cs.stats.Incr(MetricOnlineUsers)
	}

	cs.promoteDeliveries(p.Username)
	cs.broadcastRoster()
}

func (cs *ChatServer) handleJoin(c *Client, p roomPayload) {
	if p.Room == "" || p.Username == "" {
		cs.log.Printf("join on connection %s missing room or username", c.id)
		return
	}

	cs.router.Join(p.Room, c)

	if err := cs.db.ResetUnread(p.Username, p.Room); err != nil {
		cs.log.Printf("reset unread for %q in %q: %v", p.Username, p.Room, err)
	}

	c.queueMessage(evRoomJoined(p.Room, PeerOf(p.Room, p.Username)))
}

func (cs *ChatServer) handleLeave(c *Client, p roomPayload) {
	if p.Room == "" {
		return
	}
	cs.router.Leave(p.Room, c)
}

func (cs *ChatServer) handleDisconnect(c *Client) {
	if username, ok := cs.presence.Unregister(c.id); ok {
		cs.log.Printf("user %q disconnected", username)
		cs.stats.Decr(MetricOnlineUsers)
		defer cs.broadcastRoster()
	}

	cs.router.LeaveAll(c)
	cs.removeClient(c)
	c.stopClient()
}

// Shutdown closes every live connection. In-flight events are abandoned;
// clients are expected to reconnect and re-register.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.stopClient()
	}

	return ctx.Err()
}
