package adapter

import (
	"context"
	"sync"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// MemRoomRepository keeps rooms and membership in process. Direct rooms
// are indexed by their normalized member pair for order-independent
// lookup.
type MemRoomRepository struct {
	mu      sync.RWMutex
	nextID  int64
	rooms   map[int64]*delivery.Room
	directs map[[2]int64]int64 // (lo, hi) -> roomID
	maxSize int
}

func NewMemRoomRepository() *MemRoomRepository {
	return &MemRoomRepository{
		nextID:  1,
		rooms:   make(map[int64]*delivery.Room),
		directs: make(map[[2]int64]int64),
		maxSize: delivery.DefaultMaxGroupMembers,
	}
}

var _ repository.RoomRepository = (*MemRoomRepository)(nil)

func (r *MemRoomRepository) Resolve(_ context.Context, roomID int64) (*delivery.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, delivery.ErrRoomNotFound
	}
	cp := *room
	cp.MemberIDs = append([]int64(nil), room.MemberIDs...)
	return &cp, nil
}

func (r *MemRoomRepository) ResolveDirect(ctx context.Context, a, b int64) (*delivery.Room, error) {
	lo, hi := orderPair(a, b)
	r.mu.RLock()
	roomID, ok := r.directs[[2]int64{lo, hi}]
	r.mu.RUnlock()
	if !ok {
		return nil, delivery.ErrRoomNotFound
	}
	return r.Resolve(ctx, roomID)
}

func (r *MemRoomRepository) CreateDirect(_ context.Context, a, b int64) (*delivery.Room, error) {
	lo, hi := orderPair(a, b)
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.directs[[2]int64{lo, hi}]; ok {
		cp := *r.rooms[id]
		return &cp, nil
	}
	room := &delivery.Room{ID: r.nextID, Type: delivery.RoomTypeDirect, MemberIDs: []int64{lo, hi}}
	r.nextID++
	r.rooms[room.ID] = room
	r.directs[[2]int64{lo, hi}] = room.ID
	cp := *room
	return &cp, nil
}

func (r *MemRoomRepository) CreateGroup(_ context.Context, memberIDs []int64) (*delivery.Room, error) {
	if len(memberIDs) > r.maxSize {
		return nil, delivery.ErrRoomFull
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room := &delivery.Room{
		ID:        r.nextID,
		Type:      delivery.RoomTypeGroup,
		MemberIDs: append([]int64(nil), memberIDs...),
	}
	r.nextID++
	r.rooms[room.ID] = room
	cp := *room
	return &cp, nil
}

func (r *MemRoomRepository) AddMember(_ context.Context, roomID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return delivery.ErrRoomNotFound
	}
	if room.HasMember(userID) {
		return nil
	}
	if len(room.MemberIDs) >= r.maxSize {
		return delivery.ErrRoomFull
	}
	room.MemberIDs = append(room.MemberIDs, userID)
	return nil
}

func (r *MemRoomRepository) RemoveMember(_ context.Context, roomID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return delivery.ErrRoomNotFound
	}
	for i, id := range room.MemberIDs {
		if id == userID {
			room.MemberIDs = append(room.MemberIDs[:i], room.MemberIDs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *MemRoomRepository) RoomsOf(_ context.Context, userID int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []int64
	for id, room := range r.rooms {
		if room.HasMember(userID) {
			out = append(out, id)
		}
	}
	return out, nil
}
