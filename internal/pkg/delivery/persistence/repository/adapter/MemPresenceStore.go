package adapter

import (
	"context"
	"sync"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// MemPresenceStore is the in-process PresenceStore for single-node
// deployments and tests.
type MemPresenceStore struct {
	mu      sync.RWMutex
	entries map[int64]map[string]delivery.PresenceEntry // userID -> deviceID -> entry
}

func NewMemPresenceStore() *MemPresenceStore {
	return &MemPresenceStore{entries: make(map[int64]map[string]delivery.PresenceEntry)}
}

var _ repository.PresenceStore = (*MemPresenceStore)(nil)

func (s *MemPresenceStore) SetStatus(_ context.Context, e delivery.PresenceEntry) error {
	if e.LastActiveAt.IsZero() {
		e.LastActiveAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	devices := s.entries[e.UserID]
	if devices == nil {
		devices = make(map[string]delivery.PresenceEntry)
		s.entries[e.UserID] = devices
	}
	devices[e.DeviceID] = e
	return nil
}

func (s *MemPresenceStore) RemoveDevice(_ context.Context, userID int64, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if devices := s.entries[userID]; devices != nil {
		delete(devices, deviceID)
		if len(devices) == 0 {
			delete(s.entries, userID)
		}
	}
	return nil
}

func (s *MemPresenceStore) RemoveAllDevices(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

func (s *MemPresenceStore) IsReachable(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries[userID] {
		if e.Status.Reachable() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemPresenceStore) ReachableDevices(_ context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reachableLocked(userID), nil
}

func (s *MemPresenceStore) DevicesOf(_ context.Context, userIDs []int64) (map[int64][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]string, len(userIDs))
	for _, uid := range userIDs {
		if devices := s.reachableLocked(uid); len(devices) > 0 {
			out[uid] = devices
		}
	}
	return out, nil
}

func (s *MemPresenceStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for uid, devices := range s.entries {
		for id, e := range devices {
			if e.LastActiveAt.Before(cutoff) {
				delete(devices, id)
				removed++
			}
		}
		if len(devices) == 0 {
			delete(s.entries, uid)
		}
	}
	return removed, nil
}

func (s *MemPresenceStore) reachableLocked(userID int64) []string {
	var out []string
	for id, e := range s.entries[userID] {
		if e.Status.Reachable() {
			out = append(out, id)
		}
	}
	return out
}
