package relay

import (
	"context"
	"log"
	"sync"

	"github.com/npezzotti/go-social/internal/stats"
)

const (
	metricConnections   = "connections"
	metricRooms         = "rooms"
	metricRelayed       = "events_relayed"
	metricDropped       = "events_dropped"
	eventQueueSize      = 1024
	defaultSendQueueLen = 256
)

// ParticipantLookup resolves the identities taking part in a chat. It is
// called from connection reader goroutines, never from the relay loop.
type ParticipantLookup interface {
	ChatParticipants(chatId string) ([]string, error)
}

// Relay is the in-memory hub. A single goroutine (Run) owns the room
// table; every operation reaches it as an event on one channel, so each
// handler sees a consistent membership snapshot and runs to completion.
type Relay struct {
	log    *log.Logger
	lookup ParticipantLookup
	stats  stats.StatsProvider
	events chan event
	table  *membership
	stop   chan struct{}
	done   chan struct{}

	stopOnce sync.Once
}

type event interface{}

type registerEvent struct{ c *Client }

type unregisterEvent struct{ c *Client }

type setupEvent struct {
	c        *Client
	identity string
}

type joinEvent struct {
	c   *Client
	key RoomKey
}

type publishEvent struct {
	c            *Client
	msg          Message
	participants []string
}

type typingEvent struct {
	c      *Client
	chatId string
	user   string
	typing bool
}

type roomSizeQuery struct {
	key   RoomKey
	reply chan int
}

// NewRelay creates a relay. lookup may be nil, in which case messages
// reach only the members of the target chat room.
func NewRelay(logger *log.Logger, lookup ParticipantLookup, sp stats.StatsProvider) *Relay {
	for _, m := range []string{metricConnections, metricRooms, metricRelayed, metricDropped} {
		sp.RegisterMetric(m)
	}

	return &Relay{
		log:    logger,
		lookup: lookup,
		stats:  sp,
		events: make(chan event, eventQueueSize),
		table:  newMembership(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (r *Relay) Run() {
	defer close(r.done)

	for {
		select {
		case e := <-r.events:
			r.handle(e)
		case <-r.stop:
			r.log.Println("shutting down relay")
			for c := range r.table.clients {
				r.table.removeClient(c)
				close(c.send)
			}
			return
		}
	}
}

// Shutdown stops the relay loop and closes the send queue of every
// connection still registered. It is safe to call more than once.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.log.Println("received shutdown signal")
		close(r.stop)
	})

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) submit(e event) {
	select {
	case r.events <- e:
	case <-r.done:
		r.log.Printf("relay stopped, dropping %T", e)
	}
}

func (r *Relay) Register(c *Client) {
	r.submit(registerEvent{c: c})
}

func (r *Relay) Unregister(c *Client) {
	r.submit(unregisterEvent{c: c})
}

func (r *Relay) Setup(c *Client, identity string) {
	r.submit(setupEvent{c: c, identity: identity})
}

func (r *Relay) Join(c *Client, chatId string) {
	r.submit(joinEvent{c: c, key: ChatKey(chatId)})
}

func (r *Relay) Publish(c *Client, msg Message, participants []string) {
	r.submit(publishEvent{c: c, msg: msg, participants: participants})
}

func (r *Relay) Typing(c *Client, chatId, user string, typing bool) {
	r.submit(typingEvent{c: c, chatId: chatId, user: user, typing: typing})
}

// RoomSize reports the number of connections joined to key. It returns
// -1 once the relay has stopped.
func (r *Relay) RoomSize(key RoomKey) int {
	q := roomSizeQuery{key: key, reply: make(chan int, 1)}
	r.submit(q)

	select {
	case n := <-q.reply:
		return n
	case <-r.done:
		return -1
	}
}

func (r *Relay) handle(e event) {
	switch e := e.(type) {
	case registerEvent:
		r.handleRegister(e.c)
	case unregisterEvent:
		r.handleUnregister(e.c)
	case setupEvent:
		r.handleSetup(e.c, e.identity)
	case joinEvent:
		r.handleJoin(e.c, e.key)
	case publishEvent:
		r.handlePublish(e.c, e.msg, e.participants)
	case typingEvent:
		r.handleTyping(e.c, e.chatId, e.user, e.typing)
	case roomSizeQuery:
		e.reply <- len(r.table.members(e.key))
	default:
		r.log.Printf("unknown relay event %T", e)
	}
}

func (r *Relay) handleRegister(c *Client) {
	if r.table.addClient(c) {
		r.log.Printf("connection %s registered", c.id)
		r.stats.Incr(metricConnections)
	}
}

func (r *Relay) handleUnregister(c *Client) {
	if !r.table.hasClient(c) {
		return
	}

	emptied := r.table.removeClient(c)
	for range emptied {
		r.stats.Decr(metricRooms)
	}
	c.identity = ""
	close(c.send)

	r.stats.Decr(metricConnections)
	r.log.Printf("connection %s unregistered", c.id)
}

func (r *Relay) handleSetup(c *Client, identity string) {
	if !r.table.hasClient(c) {
		return
	}
	if identity == "" {
		r.log.Printf("connection %s: setup without identity", c.id)
		return
	}
	if c.principal != "" && identity != c.principal {
		r.log.Printf("connection %s: setup as %q rejected, authenticated as %q", c.id, identity, c.principal)
		return
	}
	if c.identity != "" && c.identity != identity {
		r.log.Printf("connection %s: setup as %q rejected, already %q", c.id, identity, c.identity)
		return
	}

	c.identity = identity
	r.join(c, IdentityKey(identity))
	r.deliver(c, newServerEvent(EventConnected, nil))
}

func (r *Relay) handleJoin(c *Client, key RoomKey) {
	if !r.table.hasClient(c) {
		return
	}
	if key.ID == "" {
		r.log.Printf("connection %s: join without chat id", c.id)
		return
	}

	r.join(c, key)
}

func (r *Relay) join(c *Client, key RoomKey) {
	if r.table.join(c, key) {
		r.stats.Incr(metricRooms)
	}
}

func (r *Relay) handlePublish(origin *Client, msg Message, participants []string) {
	if !r.table.hasClient(origin) {
		return
	}

	targets := make(map[*Client]struct{})
	collect := func(key RoomKey) {
		for c := range r.table.members(key) {
			if c == origin || c.identity == msg.Sender {
				continue
			}
			targets[c] = struct{}{}
		}
	}

	collect(ChatKey(msg.Chat))
	for _, p := range participants {
		if p != msg.Sender {
			collect(IdentityKey(p))
		}
	}

	if len(targets) == 0 {
		return
	}

	e := newServerEvent(EventMessageReceived, msg.Payload)
	for c := range targets {
		r.deliver(c, e)
	}
}

func (r *Relay) handleTyping(origin *Client, chatId, user string, typing bool) {
	if !r.table.hasClient(origin) {
		return
	}
	owner := origin.identity
	if owner == "" {
		owner = origin.principal
	}
	if user == "" {
		user = owner
	} else if owner != "" && user != owner {
		r.log.Printf("connection %s: typing as %q rejected, connected as %q", origin.id, user, owner)
		return
	}

	name := EventStopTyping
	if typing {
		name = EventTyping
	}
	e := newServerEvent(name, user)

	for c := range r.table.members(ChatKey(chatId)) {
		if c == origin || (user != "" && c.identity == user) {
			continue
		}
		r.deliver(c, e)
	}
}

func (r *Relay) deliver(c *Client, e *ServerEvent) {
	if c.queueMessage(e) {
		r.stats.Incr(metricRelayed)
	} else {
		r.stats.Incr(metricDropped)
	}
}
