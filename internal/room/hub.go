// Package room tracks which WebSocket sessions are interested in which
// list and fans change events out to them. A single actor goroutine
// owns all membership state, so join/leave/drop and publishes are
// atomic with respect to each other and events for one list are
// delivered in publish order.
package room

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Niza-Khunga/collaborative-todo/internal/metrics"
)

const (
	maxClientsPerRoom = 100
	commandTimeout    = 5 * time.Second
	stopTimeout       = 10 * time.Second
)

type roomMembers map[*websocket.Conn]struct{}

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type joinCmd struct {
	baseHubCmd
	listID       uuid.UUID
	connection   *websocket.Conn
	errorChannel chan error
}

type leaveCmd struct {
	baseHubCmd
	listID     uuid.UUID
	connection *websocket.Conn
}

type dropSessionCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type publishCmd struct {
	baseHubCmd
	listID  uuid.UUID
	event   string
	payload any
	exclude *websocket.Conn
}

type publishRawCmd struct {
	baseHubCmd
	listID uuid.UUID
	data   []byte
}

type memberCountCmd struct {
	baseHubCmd
	listID       uuid.UUID
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Envelope is the wire format delivered to room members.
type Envelope struct {
	Event   string          `json:"event"`
	ListID  uuid.UUID       `json:"list_id"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Hub is the process-wide room registry and change broadcaster.
// onRoomActive fires when a list gains its first local member,
// onRoomEmpty when it loses its last one; the relay uses these to
// follow room lifecycle with subscriptions.
type Hub struct {
	cmdCh        chan hubCmd
	clock        clockwork.Clock
	rooms        map[uuid.UUID]roomMembers
	memberships  map[*websocket.Conn]map[uuid.UUID]struct{}
	writers      map[*websocket.Conn]*clientWriter
	sequences    map[uuid.UUID]uint64
	onRoomActive func(listID uuid.UUID)
	onRoomEmpty  func(listID uuid.UUID)
	forwardCh    chan forwardMsg
	done         chan struct{}
}

type forwardMsg struct {
	listID uuid.UUID
	data   []byte
}

func NewHub(onRoomActive, onRoomEmpty func(uuid.UUID), clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:        make(chan hubCmd, 256),
		clock:        clock,
		rooms:        make(map[uuid.UUID]roomMembers),
		memberships:  make(map[*websocket.Conn]map[uuid.UUID]struct{}),
		writers:      make(map[*websocket.Conn]*clientWriter),
		sequences:    make(map[uuid.UUID]uint64),
		onRoomActive: onRoomActive,
		onRoomEmpty:  onRoomEmpty,
		done:         make(chan struct{}),
	}
	go h.run()
	return h
}

// SetForwarder registers a hook that receives every locally published
// envelope, already serialized. The relay uses it to forward events to
// other instances. A single drain goroutine keeps per-list publish
// order intact on the relay leg. Must be called before the hub sees
// traffic.
func (h *Hub) SetForwarder(f func(listID uuid.UUID, data []byte)) {
	h.forwardCh = make(chan forwardMsg, 256)
	go func() {
		for msg := range h.forwardCh {
			f(msg.listID, msg.data)
		}
	}()
}

// Join adds the session to the list's room. Idempotent. Returns an
// error only when the room is full or the hub is unresponsive.
func (h *Hub) Join(listID uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- joinCmd{listID: listID, connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("join command timed out after %v", commandTimeout)
	}
}

// Leave removes the session from the list's room. Idempotent.
func (h *Hub) Leave(listID uuid.UUID, conn *websocket.Conn) {
	h.cmdCh <- leaveCmd{listID: listID, connection: conn}
}

// DropSession removes the session from every room and stops its
// writer. Called on disconnect.
func (h *Hub) DropSession(conn *websocket.Conn) {
	h.cmdCh <- dropSessionCmd{connection: conn}
}

// Publish fans the event out to every member of the list's room,
// skipping exclude when non-nil. Fire-and-forget: it never blocks on,
// retries, or confirms delivery.
func (h *Hub) Publish(listID uuid.UUID, event string, payload any, exclude *websocket.Conn) {
	h.cmdCh <- publishCmd{listID: listID, event: event, payload: payload, exclude: exclude}
}

// PublishRaw delivers a pre-built envelope, typically one that arrived
// from another instance via the relay. No local sequence is assigned.
func (h *Hub) PublishRaw(listID uuid.UUID, data []byte) {
	h.cmdCh <- publishRawCmd{listID: listID, data: data}
}

// MemberCount returns the number of sessions joined to the list's
// room, or -1 if the hub is unresponsive.
func (h *Hub) MemberCount(listID uuid.UUID) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- memberCountCmd{listID: listID, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("MemberCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the hub, closing all client connections. Blocks
// until the actor goroutine has exited or the timeout elapses.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Room hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Room hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Room hub panic recovered", "panic", r)
			h.closeAll("room hub panic")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case joinCmd:
			h.handleJoin(c)
		case leaveCmd:
			h.handleLeave(c.listID, c.connection)
		case dropSessionCmd:
			h.handleDrop(c.connection)
		case publishCmd:
			h.handlePublish(c)
		case publishRawCmd:
			h.fanOut(c.listID, c.data, nil)
		case memberCountCmd:
			c.replyChannel <- len(h.rooms[c.listID])
		case stopCmd:
			h.handleStop()
			close(h.done)
			return
		default:
			slog.Warn("Room hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleJoin(c joinCmd) {
	members, exists := h.rooms[c.listID]
	if !exists {
		members = make(roomMembers)
		h.rooms[c.listID] = members
	}

	if _, already := members[c.connection]; already {
		c.errorChannel <- nil
		return
	}

	if len(members) >= maxClientsPerRoom {
		slog.Warn("Rejecting join: room full", "list_id", c.listID.String(), "max_clients", maxClientsPerRoom)
		c.errorChannel <- fmt.Errorf("room capacity (%d) reached", maxClientsPerRoom)
		return
	}

	if _, ok := h.writers[c.connection]; !ok {
		h.writers[c.connection] = newClientWriter(c.connection, h.clock)
		metrics.ConnectedClients.Inc()
	}

	members[c.connection] = struct{}{}
	if h.memberships[c.connection] == nil {
		h.memberships[c.connection] = make(map[uuid.UUID]struct{})
	}
	h.memberships[c.connection][c.listID] = struct{}{}

	if len(members) == 1 {
		metrics.ActiveRooms.Set(float64(len(h.rooms)))
		if h.onRoomActive != nil {
			go h.onRoomActive(c.listID)
		}
	}

	slog.Debug("Session joined room", "list_id", c.listID.String(), "members", len(members))
	c.errorChannel <- nil
}

func (h *Hub) handleLeave(listID uuid.UUID, conn *websocket.Conn) {
	members, exists := h.rooms[listID]
	if !exists {
		return
	}
	if _, ok := members[conn]; !ok {
		return
	}

	delete(members, conn)
	if ms := h.memberships[conn]; ms != nil {
		delete(ms, listID)
	}

	if len(members) == 0 {
		delete(h.rooms, listID)
		delete(h.sequences, listID)
		metrics.ActiveRooms.Set(float64(len(h.rooms)))
		if h.onRoomEmpty != nil {
			go h.onRoomEmpty(listID)
		}
		slog.Info("Room emptied", "list_id", listID.String())
	} else {
		slog.Debug("Session left room", "list_id", listID.String(), "members", len(members))
	}
}

func (h *Hub) handleDrop(conn *websocket.Conn) {
	for listID := range h.memberships[conn] {
		h.handleLeave(listID, conn)
	}
	delete(h.memberships, conn)

	if cw, ok := h.writers[conn]; ok {
		cw.stop()
		delete(h.writers, conn)
		metrics.ConnectedClients.Dec()
	}
}

func (h *Hub) handlePublish(c publishCmd) {
	payload, err := json.Marshal(c.payload)
	if err != nil {
		// Serialization failures stay here: the mutation already
		// succeeded, the caller must not see this.
		slog.Error("Failed to marshal event payload", "event", c.event, "list_id", c.listID.String(), "error", err)
		return
	}

	h.sequences[c.listID]++
	envelope := Envelope{
		Event:   c.event,
		ListID:  c.listID,
		Seq:     h.sequences[c.listID],
		Payload: payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("Failed to marshal event envelope", "event", c.event, "error", err)
		return
	}

	metrics.EventsPublishedTotal.WithLabelValues(c.event).Inc()
	h.fanOut(c.listID, data, c.exclude)

	if h.forwardCh != nil {
		select {
		case h.forwardCh <- forwardMsg{listID: c.listID, data: data}:
		default:
			slog.Warn("Relay forward buffer full, dropping event", "list_id", c.listID.String())
		}
	}
}

func (h *Hub) fanOut(listID uuid.UUID, data []byte, exclude *websocket.Conn) {
	members := h.rooms[listID]

	var slow []*websocket.Conn
	for conn := range members {
		if conn == exclude {
			continue
		}
		cw, ok := h.writers[conn]
		if !ok {
			continue
		}
		select {
		case cw.sendChannel <- data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "list_id", listID.String())
		metrics.SlowClientsEvicted.Inc()
		h.handleDrop(conn)
	}
}

func (h *Hub) handleStop() {
	total := len(h.writers)
	slog.Info("Room hub shutting down", "rooms", len(h.rooms), "clients", total)
	h.closeAll("Server shutting down")
	if h.forwardCh != nil {
		close(h.forwardCh)
	}
	slog.Info("Room hub shutdown complete", "disconnected_clients", total)
}

func (h *Hub) closeAll(reason string) {
	for conn, cw := range h.writers {
		cw.stopGraceful(reason)
		delete(h.writers, conn)
	}
	for listID := range h.rooms {
		delete(h.rooms, listID)
		if h.onRoomEmpty != nil {
			go h.onRoomEmpty(listID)
		}
	}
	for conn := range h.memberships {
		delete(h.memberships, conn)
	}
	metrics.ActiveRooms.Set(0)
}
