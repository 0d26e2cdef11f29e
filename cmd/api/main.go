package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	v1 "go-courier/cmd/api/router/v1"
	cacheadapter "go-courier/internal/infrastructure/cache/adapter"
	"go-courier/internal/infrastructure/database"
	busadapter "go-courier/internal/infrastructure/eventbus/adapter"
	queueadapter "go-courier/internal/infrastructure/queue/adapter"
	qport "go-courier/internal/infrastructure/queue/port"
	"go-courier/internal/infrastructure/realtime"
	"go-courier/internal/pkg/delivery/application/task"
	"go-courier/internal/pkg/delivery/application/usecase"
	repoadapter "go-courier/internal/pkg/delivery/persistence/repository/adapter"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
	httpHandler "go-courier/internal/pkg/delivery/presentation/http"
)

const (
	defaultRetryMaxAttempts = 3
	defaultRetryBackoff     = 5 * time.Second

	retrySweepInterval    = 10 * time.Second
	destructSweepInterval = 30 * time.Second
	presenceSweepInterval = 5 * time.Minute
	presenceMaxIdle       = 30 * time.Minute
)

// stores groups the persistence side so backend selection stays in one
// place. STORE_BACKEND=memory runs everything in process for local
// development; anything else uses Postgres and Redis.
type stores struct {
	messages repository.MessageStore
	rooms    repository.RoomRepository
	presence repository.PresenceStore
	ledger   repository.RetryLedger
	keys     repository.KeyDirectory
	close    func()
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Warn(".env file not found or could not be loaded")
	}
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStores(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("store initialization failed")
	}
	defer st.close()

	queueClient, err := queueadapter.NewAsynqClientFromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("queue client initialization failed")
	}
	defer queueClient.Close()

	queueServer, err := queueadapter.NewAsynqServer()
	if err != nil {
		logrus.WithError(err).Fatal("queue server initialization failed")
	}

	bus := busadapter.NewInProcessBus()
	defer bus.Close()

	rtRouter := realtime.NewRouter()
	defer rtRouter.Close()

	gateway := repoadapter.NewLogPushGateway()
	node := nodeName()

	// Application services
	coordinator := usecase.NewMutationCoordinator(st.messages, st.rooms, bus)
	if n := envInt("DELIVERY_MAX_CAS_ATTEMPTS", 0); n > 0 {
		coordinator.MaxAttempts = n
	}
	sendUC := usecase.NewSendMessageUseCase(st.messages, st.rooms, queueClient)
	dispatchUC := usecase.NewDispatchMessageUseCase(st.messages, st.rooms, st.presence, st.ledger, rtRouter, gateway, bus)
	recallUC := usecase.NewRecallMessageUseCase(coordinator)
	markReadUC := usecase.NewMarkReadUseCase(coordinator)
	destructUC := usecase.NewDestructMessageUseCase(coordinator)
	presenceUC := usecase.NewUpdatePresenceUseCase(st.presence, bus)
	retrySweepUC := usecase.NewSweepRetryUseCase(st.ledger, st.messages, st.presence, rtRouter)
	destructSweepUC := usecase.NewSweepDestructUseCase(st.messages, destructUC)

	usecase.NewEventBroadcaster(st.presence, st.rooms, rtRouter).Register(bus)

	task.RegisterDispatchMessageTask(queueServer, dispatchUC)
	task.RegisterRetrySweepTask(queueServer, retrySweepUC)
	task.RegisterDestructSweepTask(queueServer, destructSweepUC)

	go func() {
		if err := queueServer.Run(ctx); err != nil {
			logrus.WithError(err).Error("queue server stopped")
			stop()
		}
	}()

	go scheduleSweeps(ctx, queueClient)
	go sweepPresence(ctx, st.presence)

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "node": node})
	})
	v1.RegisterRoutes(r, httpHandler.Dependencies{
		Send:     sendUC,
		Recall:   recallUC,
		MarkRead: markReadUC,
		Destruct: destructUC,
		Presence: presenceUC,
		Rooms:    st.rooms,
		Ledger:   st.ledger,
		Keys:     st.keys,
		Realtime: rtRouter,
		NodeName: node,
	})

	srv := &http.Server{Addr: listenAddr(), Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logrus.WithFields(logrus.Fields{"addr": srv.Addr, "node": node}).Info("delivery core listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Fatal("http server failed")
	}
}

func buildStores(ctx context.Context) (*stores, error) {
	retryMaxAttempts := envInt("RETRY_MAX_ATTEMPTS", defaultRetryMaxAttempts)
	retryBackoff := envDuration("RETRY_BACKOFF", defaultRetryBackoff)

	if strings.EqualFold(os.Getenv("STORE_BACKEND"), "memory") {
		logrus.Info("using in-memory stores")
		return &stores{
			messages: repoadapter.NewMemMessageStore(),
			rooms:    repoadapter.NewMemRoomRepository(),
			presence: repoadapter.NewMemPresenceStore(),
			ledger:   repoadapter.NewMemRetryLedger(retryMaxAttempts, retryBackoff),
			keys:     memKeyDirectory{},
			close:    func() {},
		}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := database.NewPoolFromEnv(connectCtx)
	if err != nil {
		return nil, err
	}

	redisClient, err := cacheadapter.NewClientFromEnv()
	if err != nil {
		pool.Close()
		return nil, err
	}

	cache := cacheadapter.NewRedisCache(redisClient)
	return &stores{
		messages: repoadapter.NewCachedMessageStore(repoadapter.NewPgMessageStore(pool), cache),
		rooms:    repoadapter.NewPgRoomRepository(pool),
		presence: repoadapter.NewRedisPresenceStore(redisClient),
		ledger:   repoadapter.NewRedisRetryLedger(redisClient, retryMaxAttempts, retryBackoff),
		keys:     repoadapter.NewPgKeyDirectory(pool),
		close: func() {
			_ = redisClient.Close()
			pool.Close()
		},
	}, nil
}

// scheduleSweeps enqueues the periodic maintenance tasks so they run on
// the worker pool with the queue's retry semantics.
func scheduleSweeps(ctx context.Context, client qport.Client) {
	retryTicker := time.NewTicker(retrySweepInterval)
	destructTicker := time.NewTicker(destructSweepInterval)
	defer retryTicker.Stop()
	defer destructTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-retryTicker.C:
			enqueueSweep(ctx, client, task.RetrySweepTaskType, retrySweepInterval)
		case <-destructTicker.C:
			enqueueSweep(ctx, client, task.DestructSweepTaskType, destructSweepInterval)
		}
	}
}

func enqueueSweep(ctx context.Context, client qport.Client, taskType string, interval time.Duration) {
	// UniqueTTL collapses duplicates when several nodes tick together.
	_, err := client.Enqueue(ctx, qport.Task{Type: taskType}, qport.EnqueueOption{
		Queue:     "delivery",
		UniqueTTL: interval,
	})
	if err != nil {
		logrus.WithField("task_type", taskType).WithError(err).Warn("sweep enqueue failed")
	}
}

// sweepPresence prunes stale presence entries directly; it is advisory
// cleanup and needs no queue coordination.
func sweepPresence(ctx context.Context, presence repository.PresenceStore) {
	ticker := time.NewTicker(presenceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := presence.Sweep(sweepCtx, time.Now().Add(-presenceMaxIdle))
			cancel()
			if err != nil {
				logrus.WithError(err).Warn("presence sweep failed")
			} else if n > 0 {
				logrus.WithField("removed", n).Debug("presence sweep completed")
			}
		}
	}
}

func setupLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
		logrus.WithField("key", key).Warn("invalid integer env value, using default")
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
		logrus.WithField("key", key).Warn("invalid duration env value, using default")
	}
	return fallback
}

func listenAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func nodeName() string {
	if n := os.Getenv("NODE_NAME"); n != "" {
		return n
	}
	host, err := os.Hostname()
	if err != nil {
		return "node-unknown"
	}
	return host
}

// memKeyDirectory backs the key endpoint when running without Postgres.
type memKeyDirectory struct{}

func (memKeyDirectory) GetPublicKey(ctx context.Context, userID int64, keyID string) ([]byte, error) {
	return nil, repoadapter.ErrKeyNotFound
}

func (memKeyDirectory) Fingerprint(key []byte) string { return "" }
