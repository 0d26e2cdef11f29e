package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// RoomController handles room setup and membership changes.
type RoomController struct {
	Rooms repository.RoomRepository
}

func NewRoomController(rooms repository.RoomRepository) *RoomController {
	return &RoomController{Rooms: rooms}
}

type createRoomRequest struct {
	// Direct room when exactly two members; group otherwise.
	MemberIDs []int64 `json:"member_ids" binding:"required"`
	Direct    bool    `json:"direct"`
}

type memberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func (h *RoomController) HandleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if req.Direct {
			if len(req.MemberIDs) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "direct rooms need exactly two members"})
				return
			}
			room, err := h.Rooms.CreateDirect(ctx, req.MemberIDs[0], req.MemberIDs[1])
			if err != nil {
				c.JSON(statusFor(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"room_id": room.ID, "type": "direct"})
			return
		}

		if len(req.MemberIDs) < 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "groups need at least two members"})
			return
		}
		room, err := h.Rooms.CreateGroup(ctx, req.MemberIDs)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"room_id": room.ID, "type": "group", "members": len(room.MemberIDs)})
	}
}

func (h *RoomController) HandleAddMember() gin.HandlerFunc {
	return h.memberOp(func(ctx context.Context, roomID, userID int64) error {
		return h.Rooms.AddMember(ctx, roomID, userID)
	})
}

func (h *RoomController) HandleRemoveMember() gin.HandlerFunc {
	return h.memberOp(func(ctx context.Context, roomID, userID int64) error {
		return h.Rooms.RemoveMember(ctx, roomID, userID)
	})
}

func (h *RoomController) memberOp(op func(ctx context.Context, roomID, userID int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, err := strconv.ParseInt(c.Param("roomId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId must be an integer"})
			return
		}
		var req memberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := op(ctx, roomID, req.UserID); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"room_id": roomID, "user_id": req.UserID})
	}
}
