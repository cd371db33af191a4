package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer bounds the per-subscriber queue. A subscriber that
// falls this far behind starts losing messages rather than blocking the
// hub.
const subscriberBuffer = 32

// Message is one fan-out event addressed to a room. Origin identifies
// the publishing process so broker echoes of our own messages are
// ignored.
type Message struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin"`
}

// Broker is the cross-process transport for hub messages. pkg/bus
// implements it on NATS.
type Broker interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, fn func(data []byte)) (io.Closer, error)
}

// Subscriber receives messages for a single room on C.
type Subscriber struct {
	C    <-chan Message
	room string
	ch   chan Message
}

// Room returns the room this subscriber is attached to.
func (s *Subscriber) Room() string { return s.room }

// Hub fans messages out to every subscriber of a room. With a bound
// broker, messages also reach subscribers on other processes sharing the
// same broker subject; without one the hub runs in local-only mode.
//
// Messages published from one process to one room arrive at each local
// subscriber in publish order. No ordering is guaranteed across
// processes.
type Hub struct {
	origin string
	logger *log.Logger

	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}

	pubMu     sync.Mutex
	broker    Broker
	subject   string
	brokerSub io.Closer
}

// NewHub creates an unbound Hub. Call Bind to attach a broker.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		origin: uuid.NewString(),
		logger: logger,
		rooms:  make(map[string]map[*Subscriber]struct{}),
	}
}

// Bind attaches the hub to a broker subject. Binding again replaces the
// previous binding, so a reconnect can rebind the same hub. Binding with
// a nil broker returns the hub to local-only mode.
func (h *Hub) Bind(broker Broker, subject string) error {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	if h.brokerSub != nil {
		if err := h.brokerSub.Close(); err != nil {
			h.logger.Printf("WARN realtime: close previous broker subscription: %v", err)
		}
		h.brokerSub = nil
	}

	h.broker = broker
	h.subject = subject
	if broker == nil {
		return nil
	}

	sub, err := broker.Subscribe(subject, h.handleBrokerMessage)
	if err != nil {
		h.broker = nil
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	h.brokerSub = sub
	return nil
}

func (h *Hub) handleBrokerMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Printf("WARN realtime: drop malformed broker message: %v", err)
		return
	}
	if msg.Origin == h.origin {
		return
	}
	h.deliverLocal(msg)
}

// Publish delivers payload to every subscriber of room, locally and, if
// a broker is bound, on every other process subscribed to the same
// subject.
func (h *Hub) Publish(room, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", event, err)
	}
	msg := Message{Room: room, Event: event, Payload: raw, Origin: h.origin}

	// One publisher at a time keeps per-room delivery order for local
	// subscribers and the broker stream alike.
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.deliverLocal(msg)

	if h.broker == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", event, err)
	}
	if err := h.broker.Publish(h.subject, data); err != nil {
		return fmt.Errorf("broker publish %s: %w", event, err)
	}
	return nil
}

func (h *Hub) deliverLocal(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[msg.Room] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Printf("WARN realtime: slow subscriber in room %s, dropping %s", msg.Room, msg.Event)
		}
	}
}

// Subscribe attaches a new subscriber to room.
func (h *Hub) Subscribe(room string) *Subscriber {
	ch := make(chan Message, subscriberBuffer)
	sub := &Subscriber{C: ch, room: room, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscriber]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	return sub
}

// Unsubscribe detaches sub and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[sub.room]
	if !ok {
		return
	}
	if _, ok := members[sub]; !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.rooms, sub.room)
	}
	close(sub.ch)
}

// RoomSize reports the number of local subscribers in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close detaches the broker binding. Local subscribers stay attached.
func (h *Hub) Close() error {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.broker = nil
	if h.brokerSub == nil {
		return nil
	}
	err := h.brokerSub.Close()
	h.brokerSub = nil
	return err
}
