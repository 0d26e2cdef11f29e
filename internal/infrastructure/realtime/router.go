package realtime

import (
	"sync"
)

// Router tracks live device sockets on this node and fans payloads out
// to them. It enforces one active socket per (user, device) pair while
// letting a user keep several devices connected in parallel. It is the
// node-local half of delivery; cross-node routing is decided upstream
// from the presence cache's connection-node field.
type Router struct {
	mu          sync.RWMutex
	devices     map[string]*Connection           // deviceID -> connection
	userDevices map[int64]map[string]*Connection // userID -> deviceID -> connection
}

// NewRouter constructs an initialized Router.
func NewRouter() *Router {
	return &Router{
		devices:     make(map[string]*Connection),
		userDevices: make(map[int64]map[string]*Connection),
	}
}

// Attach registers a connection for the given device. A previous socket
// for the same device is closed after the swap so a reconnecting client
// never races its own stale session.
func (r *Router) Attach(conn *Connection) {
	var previous *Connection

	r.mu.Lock()
	if existing := r.devices[conn.DeviceID]; existing != nil {
		previous = existing
		r.detachLocked(existing)
	}

	r.devices[conn.DeviceID] = conn
	byDevice := r.userDevices[conn.UserID]
	if byDevice == nil {
		byDevice = make(map[string]*Connection)
		r.userDevices[conn.UserID] = byDevice
	}
	byDevice[conn.DeviceID] = conn
	r.mu.Unlock()

	conn.Start()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
}

// Detach removes a connection if it is still the one tracked for its
// device. A stale connection replaced by a newer socket is ignored.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	if current := r.devices[conn.DeviceID]; current != nil && current.ID == conn.ID {
		r.detachLocked(conn)
	}
	r.mu.Unlock()
}

// PushDevice delivers payload to one device's socket. Returns false
// when the device is not connected to this node or its buffer is gone.
func (r *Router) PushDevice(deviceID string, payload []byte) bool {
	r.mu.RLock()
	conn := r.devices[deviceID]
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	return conn.Send(payload) == nil
}

// PushUser delivers payload to every device the user has connected to
// this node and returns how many sockets accepted it.
func (r *Router) PushUser(userID int64, payload []byte) int {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.userDevices[userID]))
	for _, conn := range r.userDevices[userID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if conn.Send(payload) == nil {
			delivered++
		}
	}
	return delivered
}

// ConnectedDevices lists the device ids the user currently has attached
// to this node.
func (r *Router) ConnectedDevices(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.userDevices[userID]))
	for deviceID := range r.userDevices[userID] {
		out = append(out, deviceID)
	}
	return out
}

// Close terminates all tracked connections and clears router state.
func (r *Router) Close() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.devices))
	for _, conn := range r.devices {
		conns = append(conns, conn)
	}
	r.devices = make(map[string]*Connection)
	r.userDevices = make(map[int64]map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "router shutdown")
	}
}

func (r *Router) detachLocked(conn *Connection) {
	delete(r.devices, conn.DeviceID)
	if byDevice := r.userDevices[conn.UserID]; byDevice != nil {
		delete(byDevice, conn.DeviceID)
		if len(byDevice) == 0 {
			delete(r.userDevices, conn.UserID)
		}
	}
}
