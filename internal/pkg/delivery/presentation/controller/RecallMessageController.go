package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-courier/internal/pkg/delivery/application/usecase"
)

// RecallMessageController handles the recall endpoint only (one controller per endpoint)
type RecallMessageController struct {
	UC *usecase.RecallMessageUseCase
}

func NewRecallMessageController(uc *usecase.RecallMessageUseCase) *RecallMessageController {
	return &RecallMessageController{UC: uc}
}

type recallRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func (h *RecallMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messageId must be an integer"})
			return
		}

		var req recallRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		msg, err := h.UC.Execute(ctx, usecase.RecallMessageInput{MessageID: messageID, UserID: req.UserID})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message_id": msg.ID,
			"status":     msg.Status.String(),
			"version":    msg.Version,
		})
	}
}
