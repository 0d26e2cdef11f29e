package repository

import (
	"context"

	delivery "go-courier/internal/pkg/delivery/application/domain"
)

// RoomResolver maps a conversation to its member set. Group resolution
// returns the live member list at call time; a membership change
// mid-dispatch is accepted eventual consistency.
type RoomResolver interface {
	// Resolve returns the room snapshot or delivery.ErrRoomNotFound for
	// unknown and dissolved rooms.
	Resolve(ctx context.Context, roomID int64) (*delivery.Room, error)

	// ResolveDirect finds the two-party room between a and b. Lookup is
	// order-independent: a direct room is identified by its members
	// regardless of which one initiated it.
	ResolveDirect(ctx context.Context, a, b int64) (*delivery.Room, error)
}

// RoomRepository extends resolution with the write operations the
// surface layer needs to set rooms up.
type RoomRepository interface {
	RoomResolver

	CreateDirect(ctx context.Context, a, b int64) (*delivery.Room, error)
	CreateGroup(ctx context.Context, memberIDs []int64) (*delivery.Room, error)
	AddMember(ctx context.Context, roomID, userID int64) error
	RemoveMember(ctx context.Context, roomID, userID int64) error
	// RoomsOf lists the rooms a user belongs to, for presence broadcast.
	RoomsOf(ctx context.Context, userID int64) ([]int64, error)
}
