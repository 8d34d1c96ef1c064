package relay

type RoomKind uint8

const (
	ChatRoom RoomKind = iota + 1
	IdentityRoom
)

// RoomKey addresses a room. Chat rooms and identity rooms live in
// separate keyspaces so a chat id can never collide with a user id.
type RoomKey struct {
	Kind RoomKind
	ID   string
}

func ChatKey(chatId string) RoomKey {
	return RoomKey{Kind: ChatRoom, ID: chatId}
}

func IdentityKey(identity string) RoomKey {
	return RoomKey{Kind: IdentityRoom, ID: identity}
}

func (k RoomKey) String() string {
	switch k.Kind {
	case ChatRoom:
		return "chat:" + k.ID
	case IdentityRoom:
		return "user:" + k.ID
	default:
		return "unknown:" + k.ID
	}
}

// membership is the room table. It is owned by the relay goroutine and
// must not be touched from anywhere else.
type membership struct {
	rooms   map[RoomKey]map[*Client]struct{}
	clients map[*Client]map[RoomKey]struct{}
}

func newMembership() *membership {
	return &membership{
		rooms:   make(map[RoomKey]map[*Client]struct{}),
		clients: make(map[*Client]map[RoomKey]struct{}),
	}
}

func (m *membership) addClient(c *Client) bool {
	if _, ok := m.clients[c]; ok {
		return false
	}
	m.clients[c] = make(map[RoomKey]struct{})
	return true
}

func (m *membership) hasClient(c *Client) bool {
	_, ok := m.clients[c]
	return ok
}

// join adds c to the room and reports whether the room was created.
func (m *membership) join(c *Client, key RoomKey) (created bool) {
	joined, ok := m.clients[c]
	if !ok {
		return false
	}
	if _, ok := joined[key]; ok {
		return false
	}
	joined[key] = struct{}{}

	members, ok := m.rooms[key]
	if !ok {
		members = make(map[*Client]struct{})
		m.rooms[key] = members
		created = true
	}
	members[c] = struct{}{}
	return created
}

// removeClient drops c from every room it joined and returns the number
// of rooms that became empty.
func (m *membership) removeClient(c *Client) (emptied int) {
	joined, ok := m.clients[c]
	if !ok {
		return 0
	}

	for key := range joined {
		members := m.rooms[key]
		delete(members, c)
		if len(members) == 0 {
			delete(m.rooms, key)
			emptied++
		}
	}
	delete(m.clients, c)
	return emptied
}

func (m *membership) members(key RoomKey) map[*Client]struct{} {
	return m.rooms[key]
}
