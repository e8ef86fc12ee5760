package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"rag-chatbot-ui/internal/config"
	"rag-chatbot-ui/internal/controller"
	"rag-chatbot-ui/internal/model"
	"rag-chatbot-ui/internal/pkg/logger"
	"rag-chatbot-ui/internal/pkg/serverutils"
	"rag-chatbot-ui/internal/repository/contract"
	"rag-chatbot-ui/internal/repository/implementation"
	"rag-chatbot-ui/internal/repository/memory"
	redisRepo "rag-chatbot-ui/internal/repository/redis"
	"rag-chatbot-ui/internal/service"
	"rag-chatbot-ui/internal/websocket"
	"rag-chatbot-ui/pkg/backend/factory"
	"rag-chatbot-ui/pkg/database"
	pktNats "rag-chatbot-ui/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const janitorInterval = 10 * time.Minute

type Container struct {
	// Controllers
	SessionController controller.ISessionController

	// Used directly by the terminal front-end
	SessionService service.ISessionService

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	Logger logger.ILogger

	janitor *implementation.SessionRepositoryImpl
	closers []func()
}

func NewContainer(cfg *config.Config) (*Container, error) {
	c := &Container{}

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	auditLogger := logger.NewIsolatedLogger(cfg.App.AuditLogFilePath)
	c.Logger = sysLogger
	c.closers = append(c.closers, func() {
		_ = sysLogger.Sync()
		_ = auditLogger.Sync()
	})

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		rdb = newRedisClient(cfg.App.RedisURL)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	sessionRepo, err := c.newSessionRepository(cfg, rdb)
	if err != nil {
		c.Close()
		return nil, err
	}

	be, err := factory.NewBackend(cfg.Backend.Provider, cfg.Backend.BaseURL, cfg.Backend.Timeout)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init backend: %w", err)
	}
	log.Printf("[INFO] Using Backend Provider: %s (%s)", cfg.Backend.Provider, cfg.Backend.BaseURL)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Events.Topic, pubSub, natsPub, sysLogger)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Events.Topic, auditLogger)
	c.SessionService = service.NewSessionService(sessionRepo, be, publisherService, sysLogger)

	// 5. Transport
	c.WebSocketHub = websocket.NewHub(rdb, sysLogger)
	sessionMiddleware := serverutils.SessionMiddleware(cfg.Session.CookieName, cfg.Session.JwtSecret, cfg.Session.TTL)
	c.SessionController = controller.NewSessionController(c.SessionService, c.WebSocketHub, sessionMiddleware, sysLogger)

	return c, nil
}

func (c *Container) newSessionRepository(cfg *config.Config, rdb *redis.Client) (contract.SessionRepository, error) {
	switch cfg.Session.Store {
	case "memory", "":
		log.Printf("[INFO] Using Session Store: MEMORY (ttl %s)", cfg.Session.TTL)
		return memory.NewSessionRepository(cfg.Session.TTL), nil

	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("session store redis requires REDIS_URL")
		}
		log.Printf("[INFO] Using Session Store: REDIS (ttl %s)", cfg.Session.TTL)
		return redisRepo.NewSessionRepository(rdb, cfg.Session.TTL), nil

	case "postgres":
		if cfg.Database.Connection == "" {
			return nil, fmt.Errorf("session store postgres requires DB_CONNECTION_STRING")
		}
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction(), &model.UISession{})
		if err != nil {
			return nil, fmt.Errorf("connect session database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			c.closers = append(c.closers, func() { _ = sqlDB.Close() })
		}
		log.Printf("[INFO] Using Session Store: POSTGRES (ttl %s)", cfg.Session.TTL)
		repo := implementation.NewSessionRepository(db, cfg.Session.TTL)
		c.janitor = repo
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown session store: %s", cfg.Session.Store)
	}
}

func newRedisClient(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return rdb
}

// Start runs the background workers until ctx is done.
func (c *Container) Start(ctx context.Context) error {
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	go c.WebSocketHub.Run(ctx)
	if c.janitor != nil {
		go c.runJanitor(ctx)
	}
	return nil
}

// runJanitor purges expired rows of the postgres session store.
func (c *Container) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.janitor.DeleteExpired(ctx)
			if err != nil {
				c.Logger.Warn("Janitor", "Failed to purge expired sessions", map[string]interface{}{"error": err.Error()})
				continue
			}
			if n > 0 {
				c.Logger.Info("Janitor", "Purged expired sessions", map[string]interface{}{"count": n})
			}
		}
	}
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
