package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	"go-courier/internal/pkg/delivery/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint)
type SendMessageController struct {
	UC *usecase.SendMessageUseCase
}

func NewSendMessageController(uc *usecase.SendMessageUseCase) *SendMessageController {
	return &SendMessageController{UC: uc}
}

// sendMessageRequest is the DTO for the HTTP request body. Cipher
// fields arrive base64-encoded and stay opaque end to end.
type sendMessageRequest struct {
	ConversationID  string `json:"conversation_id" binding:"required"`
	SenderID        int64  `json:"sender_id" binding:"required"`
	RecipientID     *int64 `json:"recipient_id"`
	RoomID          *int64 `json:"room_id"`
	Ciphertext      []byte `json:"ciphertext" binding:"required"`
	IV              []byte `json:"iv" binding:"required"`
	AuthTag         []byte `json:"auth_tag"`
	KeyID           string `json:"key_id" binding:"required"`
	Algorithm       string `json:"algorithm"`
	ContentType     string `json:"content_type"`
	DestructTimerMs int64  `json:"destruct_timer_ms"`
}

// Handle accepts an encrypted envelope and answers as soon as it is
// durably queued for fan-out.
func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msg, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			ConversationID: req.ConversationID,
			SenderID:       req.SenderID,
			RecipientID:    req.RecipientID,
			RoomID:         req.RoomID,
			Ciphertext:     req.Ciphertext,
			IV:             req.IV,
			AuthTag:        req.AuthTag,
			KeyID:          req.KeyID,
			Algorithm:      delivery.Algorithm(req.Algorithm),
			ContentType:    req.ContentType,
			DestructTimer:  time.Duration(req.DestructTimerMs) * time.Millisecond,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":     "queued",
			"message_id": msg.ID,
			"version":    msg.Version,
			"created_at": msg.CreatedAt,
		})
	}
}
