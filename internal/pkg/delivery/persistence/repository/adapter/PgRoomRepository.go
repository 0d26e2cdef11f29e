package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// PgRoomRepository resolves rooms and membership from Postgres. Direct
// rooms keep their member pair normalized (uid_low < uid_high) so the
// lookup is order-independent.
type PgRoomRepository struct {
	pool *pgxpool.Pool
}

func NewPgRoomRepository(pool *pgxpool.Pool) *PgRoomRepository {
	return &PgRoomRepository{pool: pool}
}

var _ repository.RoomRepository = (*PgRoomRepository)(nil)

func (r *PgRoomRepository) Resolve(ctx context.Context, roomID int64) (*delivery.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	var room delivery.Room
	err := r.pool.QueryRow(ctx,
		"SELECT id, type FROM courier.room WHERE id = $1 AND dissolved_at IS NULL",
		roomID,
	).Scan(&room.ID, &room.Type)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, delivery.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		"SELECT user_id FROM courier.room_member WHERE room_id = $1",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		room.MemberIDs = append(room.MemberIDs, uid)
	}
	return &room, rows.Err()
}

func (r *PgRoomRepository) ResolveDirect(ctx context.Context, a, b int64) (*delivery.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	lo, hi := orderPair(a, b)
	var roomID int64
	err := r.pool.QueryRow(ctx,
		"SELECT room_id FROM courier.room_direct WHERE uid_low = $1 AND uid_high = $2",
		lo, hi,
	).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, delivery.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, roomID)
}

func (r *PgRoomRepository) CreateDirect(ctx context.Context, a, b int64) (*delivery.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	lo, hi := orderPair(a, b)
	var roomID int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO courier.room (type) VALUES ($1) RETURNING id
	`, delivery.RoomTypeDirect).Scan(&roomID)
	if err != nil {
		return nil, err
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO courier.room_direct (room_id, uid_low, uid_high) VALUES ($1, $2, $3)
	`, roomID, lo, hi); err != nil {
		return nil, err
	}
	for _, uid := range []int64{lo, hi} {
		if err := r.AddMember(ctx, roomID, uid); err != nil {
			return nil, err
		}
	}
	return &delivery.Room{ID: roomID, Type: delivery.RoomTypeDirect, MemberIDs: []int64{lo, hi}}, nil
}

func (r *PgRoomRepository) CreateGroup(ctx context.Context, memberIDs []int64) (*delivery.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	if len(memberIDs) > delivery.DefaultMaxGroupMembers {
		return nil, delivery.ErrRoomFull
	}
	var roomID int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO courier.room (type) VALUES ($1) RETURNING id
	`, delivery.RoomTypeGroup).Scan(&roomID)
	if err != nil {
		return nil, err
	}
	for _, uid := range memberIDs {
		if err := r.AddMember(ctx, roomID, uid); err != nil {
			return nil, err
		}
	}
	return &delivery.Room{ID: roomID, Type: delivery.RoomTypeGroup, MemberIDs: memberIDs}, nil
}

func (r *PgRoomRepository) AddMember(ctx context.Context, roomID, userID int64) error {
	if r == nil || r.pool == nil {
		return errors.New("PgRoomRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO courier.room_member (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`, roomID, userID)
	return err
}

func (r *PgRoomRepository) RemoveMember(ctx context.Context, roomID, userID int64) error {
	if r == nil || r.pool == nil {
		return errors.New("PgRoomRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx,
		"DELETE FROM courier.room_member WHERE room_id = $1 AND user_id = $2",
		roomID, userID,
	)
	return err
}

func (r *PgRoomRepository) RoomsOf(ctx context.Context, userID int64) ([]int64, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx,
		"SELECT room_id FROM courier.room_member WHERE user_id = $1",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func orderPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
