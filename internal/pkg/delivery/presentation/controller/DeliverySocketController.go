package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"go-courier/internal/infrastructure/realtime"
	delivery "go-courier/internal/pkg/delivery/application/domain"
	"go-courier/internal/pkg/delivery/application/usecase"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// DeliverySocketController owns the websocket endpoint recipients keep
// open for real-time delivery. Inbound traffic is thin: delivery acks,
// read receipts and presence heartbeats; messages always enter through
// the HTTP ingress, never the socket.
type DeliverySocketController struct {
	router     *realtime.Router
	ledger     repository.RetryLedger
	presenceUC *usecase.UpdatePresenceUseCase
	markReadUC *usecase.MarkReadUseCase
	node       string
}

func NewDeliverySocketController(router *realtime.Router, ledger repository.RetryLedger, presenceUC *usecase.UpdatePresenceUseCase, markReadUC *usecase.MarkReadUseCase, node string) *DeliverySocketController {
	return &DeliverySocketController{
		router:     router,
		ledger:     ledger,
		presenceUC: presenceUC,
		markReadUC: markReadUC,
		node:       node,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

type inboundFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id,omitempty"`
	Status    *int16 `json:"status,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ackFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id,omitempty"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *DeliverySocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		deviceID := c.Query("device_id")
		if deviceID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			logrus.WithError(err).Debug("websocket upgrade failed")
			return
		}

		conn := realtime.NewConnection(userID, deviceID, ws)
		ctl.router.Attach(conn)
		ctl.setPresence(c.Request.Context(), userID, deviceID, delivery.PresenceOnline)
		defer func() {
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
			ctl.setPresence(context.Background(), userID, deviceID, delivery.PresenceOffline)
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		if payload, err := json.Marshal(ackFrame{Type: "connected"}); err == nil {
			_ = conn.Send(payload)
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
			ctl.handleFrame(c.Request.Context(), conn, data)
		}
	}
}

func (ctl *DeliverySocketController) handleFrame(ctx context.Context, conn *realtime.Connection, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		ctl.replyError(conn, "bad_frame", "frame must be JSON")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch frame.Type {
	case "ack":
		if frame.MessageID == 0 {
			ctl.replyError(conn, "bad_frame", "message_id is required")
			return
		}
		if err := ctl.ledger.Acknowledge(ctx, frame.MessageID, conn.UserID); err != nil {
			logrus.WithFields(logrus.Fields{
				"message_id": frame.MessageID,
				"user_id":    conn.UserID,
			}).WithError(err).Warn("socket ack failed")
			return
		}
		if payload, err := json.Marshal(ackFrame{Type: "acked", MessageID: frame.MessageID}); err == nil {
			_ = conn.Send(payload)
		}

	case "read":
		if frame.MessageID == 0 {
			ctl.replyError(conn, "bad_frame", "message_id is required")
			return
		}
		if _, err := ctl.markReadUC.Execute(ctx, usecase.MarkReadInput{MessageID: frame.MessageID, ReaderID: conn.UserID}); err != nil {
			ctl.replyError(conn, "read_failed", err.Error())
			return
		}
		// A read implies the push arrived; retire the retry entry too.
		if err := ctl.ledger.Acknowledge(ctx, frame.MessageID, conn.UserID); err != nil {
			logrus.WithField("message_id", frame.MessageID).WithError(err).Debug("ledger ack after read failed")
		}
		if payload, err := json.Marshal(ackFrame{Type: "read_ok", MessageID: frame.MessageID}); err == nil {
			_ = conn.Send(payload)
		}

	case "presence":
		status := delivery.PresenceOnline
		if frame.Status != nil {
			status = delivery.PresenceStatus(*frame.Status)
		}
		ctl.setPresence(ctx, conn.UserID, conn.DeviceID, status)

	default:
		ctl.replyError(conn, "unknown_frame", "unsupported frame type")
	}
}

func (ctl *DeliverySocketController) setPresence(ctx context.Context, userID int64, deviceID string, status delivery.PresenceStatus) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := ctl.presenceUC.Execute(ctx, usecase.UpdatePresenceInput{
		UserID:   userID,
		DeviceID: deviceID,
		Node:     ctl.node,
		Status:   status,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"device_id": deviceID,
		}).WithError(err).Warn("presence update failed")
	}
}

func (ctl *DeliverySocketController) replyError(conn *realtime.Connection, code string, message string) {
	frame := errorFrame{
		Type:  "error",
		Code:  code,
		Error: message,
	}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
