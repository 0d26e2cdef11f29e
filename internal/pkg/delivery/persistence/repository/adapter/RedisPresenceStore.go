package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

const (
	presenceDeviceKeyFmt  = "presence:device:%d:%s" // hash: status, node, last_active
	presenceDevicesKeyFmt = "presence:devices:%d"   // set of device ids
	presenceTTL           = 30 * time.Minute
)

// RedisPresenceStore keeps per-device presence entries in Redis hashes
// with a sliding TTL. Key expiry is the advisory cleanup path; routing
// correctness never depends on it because reachability is re-read
// before every push.
type RedisPresenceStore struct {
	client *redis.Client
}

func NewRedisPresenceStore(client *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{client: client}
}

var _ repository.PresenceStore = (*RedisPresenceStore)(nil)

func deviceKey(userID int64, deviceID string) string {
	return fmt.Sprintf(presenceDeviceKeyFmt, userID, deviceID)
}

func devicesKey(userID int64) string {
	return fmt.Sprintf(presenceDevicesKeyFmt, userID)
}

func (s *RedisPresenceStore) SetStatus(ctx context.Context, e delivery.PresenceEntry) error {
	if e.LastActiveAt.IsZero() {
		e.LastActiveAt = time.Now().UTC()
	}
	pipe := s.client.TxPipeline()
	dk := deviceKey(e.UserID, e.DeviceID)
	pipe.HSet(ctx, dk, map[string]any{
		"status":      int16(e.Status),
		"node":        e.Node,
		"last_active": e.LastActiveAt.UnixMilli(),
	})
	pipe.Expire(ctx, dk, presenceTTL)
	pipe.SAdd(ctx, devicesKey(e.UserID), e.DeviceID)
	pipe.Expire(ctx, devicesKey(e.UserID), presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: set status: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) RemoveDevice(ctx context.Context, userID int64, deviceID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, deviceKey(userID, deviceID))
	pipe.SRem(ctx, devicesKey(userID), deviceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: remove device: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) RemoveAllDevices(ctx context.Context, userID int64) error {
	ids, err := s.client.SMembers(ctx, devicesKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("presence: list devices: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, deviceKey(userID, id))
	}
	pipe.Del(ctx, devicesKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: remove all devices: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) IsReachable(ctx context.Context, userID int64) (bool, error) {
	devices, err := s.ReachableDevices(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(devices) > 0, nil
}

func (s *RedisPresenceStore) ReachableDevices(ctx context.Context, userID int64) ([]string, error) {
	ids, err := s.client.SMembers(ctx, devicesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: list devices: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, deviceKey(userID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("presence: read devices: %w", err)
	}

	var out []string
	for i, cmd := range cmds {
		fields := cmd.Val()
		// Entry expired between the set read and here: treat as offline.
		if len(fields) == 0 {
			continue
		}
		code, err := strconv.ParseInt(fields["status"], 10, 16)
		if err != nil {
			continue
		}
		if delivery.PresenceStatus(code).Reachable() {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

func (s *RedisPresenceStore) DevicesOf(ctx context.Context, userIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string, len(userIDs))
	for _, uid := range userIDs {
		devices, err := s.ReachableDevices(ctx, uid)
		if err != nil {
			return nil, err
		}
		if len(devices) > 0 {
			result[uid] = devices
		}
	}
	return result, nil
}

// Sweep prunes device-set members whose entry hash already expired.
// Redis TTLs do the heavy lifting; this only tidies the index sets.
func (s *RedisPresenceStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, "presence:devices:*", 200).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		var userID int64
		if _, err := fmt.Sscanf(setKey, "presence:devices:%d", &userID); err != nil {
			continue
		}
		ids, err := s.client.SMembers(ctx, setKey).Result()
		if err != nil {
			continue
		}
		for _, id := range ids {
			fields, err := s.client.HGetAll(ctx, deviceKey(userID, id)).Result()
			if err != nil {
				continue
			}
			if len(fields) > 0 {
				ms, perr := strconv.ParseInt(fields["last_active"], 10, 64)
				if perr == nil && time.UnixMilli(ms).After(cutoff) {
					continue
				}
			}
			if s.client.SRem(ctx, setKey, id).Val() > 0 {
				s.client.Del(ctx, deviceKey(userID, id))
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("presence: sweep: %w", err)
	}
	return removed, nil
}
