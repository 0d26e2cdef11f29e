package delivery

import "time"

// PresenceStatus is a device's activity state. INVISIBLE hides the user
// from presence broadcasts but still receives real-time delivery.
type PresenceStatus int16

const (
	PresenceOnline    PresenceStatus = 1
	PresenceAway      PresenceStatus = 2
	PresenceBusy      PresenceStatus = 3
	PresenceInvisible PresenceStatus = 4
	PresenceOffline   PresenceStatus = 5
	PresenceDND       PresenceStatus = 6
)

// Reachable reports whether a device in this status accepts real-time
// pushes. Offline and DND devices fall back to the push gateway.
func (s PresenceStatus) Reachable() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceInvisible:
		return true
	default:
		return false
	}
}

// Broadcastable reports whether the status may be announced to other
// room members. Invisible users are delivered to but never announced.
func (s PresenceStatus) Broadcastable() bool {
	return s != PresenceInvisible
}

func (s PresenceStatus) String() string {
	switch s {
	case PresenceOnline:
		return "ONLINE"
	case PresenceAway:
		return "AWAY"
	case PresenceBusy:
		return "BUSY"
	case PresenceInvisible:
		return "INVISIBLE"
	case PresenceOffline:
		return "OFFLINE"
	case PresenceDND:
		return "DND"
	default:
		return "UNKNOWN"
	}
}

// PresenceEntry records one device's reachability. A user may hold many
// entries; a device with no entry is offline. Entries expire after an
// inactivity window as advisory cleanup only - routing always re-checks
// before pushing.
type PresenceEntry struct {
	UserID       int64
	DeviceID     string
	Node         string // connection node currently holding the socket
	Status       PresenceStatus
	LastActiveAt time.Time
}
