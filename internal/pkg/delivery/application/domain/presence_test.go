package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceReachable(t *testing.T) {
	assert.True(t, PresenceOnline.Reachable())
	assert.True(t, PresenceAway.Reachable())
	assert.True(t, PresenceBusy.Reachable())
	assert.True(t, PresenceInvisible.Reachable())
	assert.False(t, PresenceOffline.Reachable())
	assert.False(t, PresenceDND.Reachable())
}

func TestPresenceBroadcastable(t *testing.T) {
	// Invisible users receive deliveries but are never announced.
	assert.False(t, PresenceInvisible.Broadcastable())
	assert.True(t, PresenceOnline.Broadcastable())
	assert.True(t, PresenceOffline.Broadcastable())
}

func TestRoomRecipients(t *testing.T) {
	room := Room{ID: 1, Type: RoomTypeGroup, MemberIDs: []int64{1, 2, 3, 4}}
	assert.ElementsMatch(t, []int64{2, 3, 4}, room.Recipients(1))
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, room.Recipients(99))
	assert.True(t, room.HasMember(3))
	assert.False(t, room.HasMember(7))
}
