package chat

import (
	"sync"
	"time"

	"RentChat/logger"
	"RentChat/metrics"
	"RentChat/tools/errs"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type ManagerConf struct {
	HeartbeatTTL time.Duration    // silent beyond this -> forced unregister
	SweepEvery   time.Duration    // sweeper period
	SendQueue    int              // per-connection outbound queue size
	Clock        func() time.Time // injectable clock for tests; nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.HeartbeatTTL <= 0 {
		c.HeartbeatTTL = 75 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// Conn is one live websocket owned by an authenticated user. Writes go
// through the bounded send queue; the write pump is the only goroutine that
// touches the underlying socket.
type Conn struct {
	ID     string
	UserID string

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu    sync.Mutex
	rooms map[string]struct{}

	CreatedAt time.Time
	Heartbeat time.Time
	ExpireAt  time.Time
}

// trySend enqueues without blocking; false means the queue is full and the
// receiver is too slow to keep.
func (c *Conn) trySend(data []byte) bool {
	if data == nil {
		return true
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return true // closing anyway, don't report as overflow
	default:
		return false
	}
}

// Reply enqueues a direct response to this connection. Drops silently on
// overflow; replies are never worth killing a connection over.
func (c *Conn) Reply(data []byte) {
	_ = c.trySend(data)
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Conn) joinRoom(id string) {
	c.mu.Lock()
	c.rooms[id] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) leaveRoom(id string) {
	c.mu.Lock()
	delete(c.rooms, id)
	c.mu.Unlock()
}

func (c *Conn) inRoom(id string) bool {
	c.mu.Lock()
	_, ok := c.rooms[id]
	c.mu.Unlock()
	return ok
}

func (c *Conn) roomIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// ConnManager tracks which user owns which live connections. It feeds
// per-connection deltas to the presence tracker and instructs the room
// dispatcher to drop a connection from its rooms on unregister.
type ConnManager struct {
	mu     sync.RWMutex
	byID   map[string]*Conn
	byUser map[string]map[string]*Conn

	conf     ManagerConf
	stopOnce sync.Once
	stopCh   chan struct{}

	onConnect    func(user string) // every register
	onDisconnect func(user string) // every unregister
	onEvict      func(c *Conn)     // room/subscription cleanup
}

func NewConnManager(conf ManagerConf) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byID:   make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
		conf:   conf,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

// SetHooks wires the presence tracker and room dispatcher callbacks.
// Must be called before the first Register.
//
// onConnect/onDisconnect fire once per connection, synchronously, so a
// connection's -1 can never overtake its own +1; the presence tracker's
// refcount derives the 0<->1 transitions from the deltas. The hooks must
// not block (the tracker fans out with non-blocking sends).
func (m *ConnManager) SetHooks(onConnect, onDisconnect func(user string), onEvict func(c *Conn)) {
	m.onConnect = onConnect
	m.onDisconnect = onDisconnect
	m.onEvict = onEvict
}

func (m *ConnManager) Clock() func() time.Time { return m.conf.Clock }

func (m *ConnManager) HeartbeatTTL() time.Duration { return m.conf.HeartbeatTTL }

// Register adds an authenticated connection. Credential verification
// happens before this is called; by the time a Conn exists it has an owner.
func (m *ConnManager) Register(ws *websocket.Conn, userID string) (*Conn, error) {
	if userID == "" {
		return nil, errs.ErrAuthentication.WithDetail("empty user")
	}
	now := m.conf.Clock()
	c := &Conn{
		ID:        uuid.NewString(),
		UserID:    userID,
		ws:        ws,
		send:      make(chan []byte, m.conf.SendQueue),
		done:      make(chan struct{}),
		rooms:     make(map[string]struct{}),
		CreatedAt: now,
		Heartbeat: now,
		ExpireAt:  now.Add(m.conf.HeartbeatTTL),
	}

	m.mu.Lock()
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]*Conn)
	}
	m.byUser[userID][c.ID] = c
	m.byID[c.ID] = c
	m.mu.Unlock()

	metrics.OpenConnections.Inc()
	if m.onConnect != nil {
		m.onConnect(userID)
	}
	return c, nil
}

// Unregister removes a connection; idempotent. The disconnect delta fires
// after the registry no longer knows the connection, and the room
// dispatcher drops it from every room it had joined.
func (m *ConnManager) Unregister(c *Conn) {
	if c == nil {
		return
	}
	m.mu.Lock()
	if _, ok := m.byID[c.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byID, c.ID)
	mm := m.byUser[c.UserID]
	delete(mm, c.ID)
	if len(mm) == 0 {
		delete(m.byUser, c.UserID)
	}
	m.mu.Unlock()

	metrics.OpenConnections.Dec()
	if m.onEvict != nil {
		m.onEvict(c)
	}
	if m.onDisconnect != nil {
		m.onDisconnect(c.UserID)
	}
	c.close()
}

// Kick drops a receiver that cannot keep up. The sender is never stalled;
// the slow consumer loses its connection instead.
func (m *ConnManager) Kick(c *Conn, reason string) {
	logger.Warnf("[connmgr] kicking conn=%s user=%s: %s", c.ID, c.UserID, reason)
	metrics.SlowConsumersDropped.Inc()
	m.Unregister(c)
}

// Touch refreshes the heartbeat and expiry of a connection.
func (m *ConnManager) Touch(connID string) {
	now := m.conf.Clock()
	m.mu.Lock()
	if c, ok := m.byID[connID]; ok {
		c.Heartbeat = now
		c.ExpireAt = now.Add(m.conf.HeartbeatTTL)
	}
	m.mu.Unlock()
}

func (m *ConnManager) Get(connID string) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[connID]
	return c, ok
}

func (m *ConnManager) ConnsOfUser(user string) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[user]
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

func (m *ConnManager) CountForUser(user string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[user])
}

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.byID))
	for _, c := range m.byID {
		conns = append(conns, c)
	}
	m.mu.Unlock()
	for _, c := range conns {
		m.Unregister(c)
	}
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.sweepOnce(m.conf.Clock())
		}
	}
}

// sweepOnce force-unregisters connections silent beyond the heartbeat TTL.
func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []*Conn
	m.mu.RLock()
	for _, c := range m.byID {
		if now.After(c.ExpireAt) {
			expired = append(expired, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range expired {
		logger.Infof("[connmgr] heartbeat timeout conn=%s user=%s", c.ID, c.UserID)
		m.Unregister(c)
	}
}
