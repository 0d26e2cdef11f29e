package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-courier/internal/pkg/delivery/application/usecase"
)

// DestructMessageController handles manual message destruction (one controller per endpoint)
type DestructMessageController struct {
	UC *usecase.DestructMessageUseCase
}

func NewDestructMessageController(uc *usecase.DestructMessageUseCase) *DestructMessageController {
	return &DestructMessageController{UC: uc}
}

func (h *DestructMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messageId must be an integer"})
			return
		}

		var actorID int64
		if v := c.Query("user_id"); v != "" {
			actorID, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be an integer"})
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		msg, err := h.UC.Execute(ctx, usecase.DestructMessageInput{MessageID: messageID, ActorID: actorID})
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
