// Package realtime keeps the live connections of online users and the match
// sessions played over them.
package realtime

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Dosada05/tournament-arena/services"
	"github.com/google/uuid"
	"github.com/rs/xid"
)

var (
	ErrAlreadyConnected   = fmt.Errorf("%w: user already has a live connection", services.ErrConflict)
	ErrConnectionNotFound = fmt.Errorf("%w: connection not found", services.ErrNotFound)
)

// Channel is a live duplex connection to one client.
type Channel interface {
	Send(payload []byte) error
	Close(code int, reason string) error
	// Observe installs the callbacks for inbound frames and for the channel
	// going away. onClose is called once.
	Observe(onMessage func(payload []byte), onClose func())
}

type (
	MessageHook    func(connectionID string, payload []byte)
	DisconnectHook func(connectionID string, userID uuid.UUID)
)

// Registry maps connection ids and user ids to live channels, at most one
// channel per user.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	users    map[string]uuid.UUID
	conns    map[uuid.UUID]string

	onMessage    MessageHook
	onDisconnect []DisconnectHook

	newID  func() string
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]Channel),
		users:    make(map[string]uuid.UUID),
		conns:    make(map[uuid.UUID]string),
		newID:    func() string { return xid.New().String() },
		logger:   logger,
	}
}

// OnMessage sets the handler for inbound frames of every connection.
func (r *Registry) OnMessage(hook MessageHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMessage = hook
}

// OnDisconnect adds a cleanup hook run after a connection is unregistered.
func (r *Registry) OnDisconnect(hook DisconnectHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisconnect = append(r.onDisconnect, hook)
}

// Register binds ch to userID. If the user is already connected the existing
// connection is kept and ErrAlreadyConnected returned; closing ch is up to the caller.
func (r *Registry) Register(userID uuid.UUID, ch Channel) (string, error) {
	r.mu.Lock()
	if _, ok := r.conns[userID]; ok {
		r.mu.Unlock()
		return "", ErrAlreadyConnected
	}
	id := r.newID()
	for {
		if _, taken := r.channels[id]; !taken {
			break
		}
		id = r.newID()
	}
	r.channels[id] = ch
	r.users[id] = userID
	r.conns[userID] = id
	r.mu.Unlock()

	ch.Observe(
		func(payload []byte) { r.dispatch(id, payload) },
		func() { r.Unregister(id) },
	)
	r.logger.Info("connection registered", slog.String("connection_id", id), slog.String("user_id", userID.String()))
	return id, nil
}

func (r *Registry) dispatch(connectionID string, payload []byte) {
	r.mu.RLock()
	hook := r.onMessage
	r.mu.RUnlock()
	if hook != nil {
		hook(connectionID, payload)
	}
}

// Unregister is idempotent. Cleanup hooks run synchronously, outside the registry lock.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	userID, ok := r.users[connectionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.channels, connectionID)
	delete(r.users, connectionID)
	if r.conns[userID] == connectionID {
		delete(r.conns, userID)
	}
	hooks := append([]DisconnectHook(nil), r.onDisconnect...)
	r.mu.Unlock()

	r.logger.Info("connection unregistered", slog.String("connection_id", connectionID), slog.String("user_id", userID.String()))
	for _, hook := range hooks {
		hook(connectionID, userID)
	}
}

func (r *Registry) Lookup(connectionID string) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[connectionID]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return ch, nil
}

func (r *Registry) LookupByUser(userID uuid.UUID) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.conns[userID]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return r.channels[id], nil
}

func (r *Registry) UserOf(connectionID string) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.users[connectionID]
	if !ok {
		return uuid.Nil, ErrConnectionNotFound
	}
	return userID, nil
}

func (r *Registry) ConnectionOf(userID uuid.UUID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.conns[userID]
	if !ok {
		return "", ErrConnectionNotFound
	}
	return id, nil
}

// ListOnlineUsers returns a point-in-time snapshot.
func (r *Registry) ListOnlineUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(r.conns))
	for userID := range r.conns {
		out = append(out, userID)
	}
	return out
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

func (r *Registry) Send(connectionID string, payload []byte) error {
	ch, err := r.Lookup(connectionID)
	if err != nil {
		return err
	}
	return ch.Send(payload)
}

func (r *Registry) NotifyUser(userID uuid.UUID, payload []byte) error {
	ch, err := r.LookupByUser(userID)
	if err != nil {
		return err
	}
	return ch.Send(payload)
}

// Close closes the channel with the given close code and unregisters it.
func (r *Registry) Close(connectionID string, code int, reason string) error {
	ch, err := r.Lookup(connectionID)
	if err != nil {
		return err
	}
	closeErr := ch.Close(code, reason)
	r.Unregister(connectionID)
	return closeErr
}
