package repository

import (
	"context"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
)

// PresenceStore tracks which devices are currently reachable and on
// which connection node. Implementations must be safe for concurrent
// upserts by many socket handlers; expiry of stale entries is advisory
// cleanup, never a delivery correctness requirement.
type PresenceStore interface {
	// SetStatus updates or inserts the entry for (userID, deviceID).
	SetStatus(ctx context.Context, e delivery.PresenceEntry) error

	// RemoveDevice forces a single device offline.
	RemoveDevice(ctx context.Context, userID int64, deviceID string) error

	// RemoveAllDevices forces the user fully offline (forced logout).
	RemoveAllDevices(ctx context.Context, userID int64) error

	// IsReachable reports whether at least one of the user's devices is
	// in a reachable status.
	IsReachable(ctx context.Context, userID int64) (bool, error)

	// ReachableDevices lists the user's reachable device ids.
	ReachableDevices(ctx context.Context, userID int64) ([]string, error)

	// DevicesOf is the batch form used by dispatch to avoid N round
	// trips. Users with no reachable device are absent from the map.
	DevicesOf(ctx context.Context, userIDs []int64) (map[int64][]string, error)

	// Sweep drops entries inactive since before the cutoff and returns
	// how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}
