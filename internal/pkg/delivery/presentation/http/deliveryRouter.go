package http

import (
	"github.com/gin-gonic/gin"

	"go-courier/internal/infrastructure/realtime"
	"go-courier/internal/pkg/delivery/application/usecase"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
	"go-courier/internal/pkg/delivery/presentation/controller"
)

// Dependencies bundles the assembled use cases and stores the delivery
// endpoints bind to. main wires them once; routes never construct
// adapters themselves.
type Dependencies struct {
	Send     *usecase.SendMessageUseCase
	Recall   *usecase.RecallMessageUseCase
	MarkRead *usecase.MarkReadUseCase
	Destruct *usecase.DestructMessageUseCase
	Presence *usecase.UpdatePresenceUseCase
	Rooms    repository.RoomRepository
	Ledger   repository.RetryLedger
	Keys     repository.KeyDirectory
	Realtime *realtime.Router
	NodeName string
}

// RegisterRoutes registers delivery endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, deps Dependencies) {
	sendCtl := controller.NewSendMessageController(deps.Send)
	recallCtl := controller.NewRecallMessageController(deps.Recall)
	readCtl := controller.NewMarkReadController(deps.MarkRead)
	destructCtl := controller.NewDestructMessageController(deps.Destruct)
	presenceCtl := controller.NewPresenceController(deps.Presence)
	roomCtl := controller.NewRoomController(deps.Rooms)
	keyCtl := controller.NewKeyLookupController(deps.Keys)
	socketCtl := controller.NewDeliverySocketController(deps.Realtime, deps.Ledger, deps.Presence, deps.MarkRead, deps.NodeName)

	// POST /api/v1/message -> accept an encrypted envelope for fan-out
	g.POST("/message", sendCtl.Handle())

	// POST /api/v1/message/:messageId/recall -> sender retracts a message
	g.POST("/message/:messageId/recall", recallCtl.Handle())

	// POST /api/v1/message/:messageId/read -> recipient read receipt
	g.POST("/message/:messageId/read", readCtl.Handle())

	// DELETE /api/v1/message/:messageId -> wipe cipher payload
	g.DELETE("/message/:messageId", destructCtl.Handle())

	// PUT /api/v1/presence -> device status upsert
	g.PUT("/presence", presenceCtl.HandleUpdate())

	// DELETE /api/v1/presence/:userId -> force all devices offline
	g.DELETE("/presence/:userId", presenceCtl.HandleDisconnect())

	// POST /api/v1/room + membership changes
	g.POST("/room", roomCtl.HandleCreate())
	g.POST("/room/:roomId/member", roomCtl.HandleAddMember())
	g.DELETE("/room/:roomId/member", roomCtl.HandleRemoveMember())

	// GET /api/v1/key/:userId/:keyId -> recipient public key lookup
	g.GET("/key/:userId/:keyId", keyCtl.Handle())

	// GET /api/v1/ws -> websocket endpoint for realtime delivery
	g.GET("/ws", socketCtl.Handle())
}
