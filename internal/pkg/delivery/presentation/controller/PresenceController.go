package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	"go-courier/internal/pkg/delivery/application/usecase"
)

// PresenceController handles presence updates and forced disconnects.
type PresenceController struct {
	UC *usecase.UpdatePresenceUseCase
}

func NewPresenceController(uc *usecase.UpdatePresenceUseCase) *PresenceController {
	return &PresenceController{UC: uc}
}

type presenceRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
	Node     string `json:"node"`
	Status   int16  `json:"status" binding:"required"`
}

// HandleUpdate upserts one device's presence status.
func (h *PresenceController) HandleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req presenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status := delivery.PresenceStatus(req.Status)
		if status < delivery.PresenceOnline || status > delivery.PresenceDND {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown presence status"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		err := h.UC.Execute(ctx, usecase.UpdatePresenceInput{
			UserID:   req.UserID,
			DeviceID: req.DeviceID,
			Node:     req.Node,
			Status:   status,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":   req.UserID,
			"device_id": req.DeviceID,
			"status":    status.String(),
		})
	}
}

// HandleDisconnect forces every device of a user offline.
func (h *PresenceController) HandleDisconnect() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId must be an integer"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.UC.Disconnect(ctx, userID); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "status": "OFFLINE"})
	}
}
