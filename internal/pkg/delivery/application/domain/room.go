package delivery

// RoomType distinguishes two-party chats from groups.
type RoomType int16

const (
	RoomTypeDirect RoomType = 1
	RoomTypeGroup  RoomType = 2
)

// DefaultMaxGroupMembers bounds group fan-out. Resolution of a larger
// room is a data bug upstream, not something dispatch recovers from.
const DefaultMaxGroupMembers = 2000

// Room is a point-in-time membership snapshot. Dispatch reads a copy;
// membership changes mid-dispatch are accepted eventual consistency.
type Room struct {
	ID        int64    `db:"id"`
	Type      RoomType `db:"type"`
	MemberIDs []int64
}

// IsDirect reports whether the room is a two-party chat.
func (r *Room) IsDirect() bool { return r.Type == RoomTypeDirect }

// Recipients returns every member except the sender. Order is not
// significant; the slice is freshly allocated.
func (r *Room) Recipients(senderID int64) []int64 {
	out := make([]int64, 0, len(r.MemberIDs))
	for _, id := range r.MemberIDs {
		if id != senderID {
			out = append(out, id)
		}
	}
	return out
}

// HasMember reports whether uid belongs to the snapshot.
func (r *Room) HasMember(uid int64) bool {
	for _, id := range r.MemberIDs {
		if id == uid {
			return true
		}
	}
	return false
}
