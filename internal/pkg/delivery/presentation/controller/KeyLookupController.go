package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-courier/internal/pkg/delivery/persistence/repository/adapter"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// KeyLookupController serves recipient public keys so senders can
// encrypt toward them. Key material is opaque to this service.
type KeyLookupController struct {
	Keys repository.KeyDirectory
}

func NewKeyLookupController(keys repository.KeyDirectory) *KeyLookupController {
	return &KeyLookupController{Keys: keys}
}

func (h *KeyLookupController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId must be an integer"})
			return
		}
		keyID := c.Param("keyId")
		if keyID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keyId is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		key, err := h.Keys.GetPublicKey(ctx, userID, keyID)
		if err != nil {
			if errors.Is(err, adapter.ErrKeyNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user_id":     userID,
			"key_id":      keyID,
			"public_key":  key,
			"fingerprint": h.Keys.Fingerprint(key),
		})
	}
}
