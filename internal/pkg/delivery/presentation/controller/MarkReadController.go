package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-courier/internal/pkg/delivery/application/usecase"
)

// MarkReadController handles the read-receipt endpoint only (one controller per endpoint)
type MarkReadController struct {
	UC *usecase.MarkReadUseCase
}

func NewMarkReadController(uc *usecase.MarkReadUseCase) *MarkReadController {
	return &MarkReadController{UC: uc}
}

type markReadRequest struct {
	ReaderID int64 `json:"reader_id" binding:"required"`
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messageId must be an integer"})
			return
		}

		var req markReadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		msg, err := h.UC.Execute(ctx, usecase.MarkReadInput{MessageID: messageID, ReaderID: req.ReaderID})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		resp := gin.H{
			"message_id": msg.ID,
			"status":     msg.Status.String(),
			"version":    msg.Version,
		}
		if msg.ReadAt != nil {
			resp["read_at"] = msg.ReadAt
		}
		if msg.DestructAt != nil {
			resp["destruct_at"] = msg.DestructAt
		}
		c.JSON(http.StatusOK, resp)
	}
}
