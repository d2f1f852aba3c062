package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kanban/internal/auth"
	"kanban/internal/config"
	"kanban/internal/database"
	"kanban/internal/feed"
	"kanban/internal/handler"
	"kanban/internal/middleware"
	"kanban/internal/repository"
	"kanban/internal/session"
	"kanban/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config

	redis  *redis.Client
	hub    *feed.Hub
	ctx    context.Context
	cancel context.CancelFunc
}

// Components the HTTP routes are built from. Init fills it from the
// database; tests can build one from in-memory backends.
type Components struct {
	Tokens     *auth.Manager
	Users      handler.UserRepository
	Boards     handler.BoardRepository
	Lists      handler.ListRepository
	Cards      handler.CardRepository
	Comments   handler.CommentRepository
	Members    handler.MemberRepository
	Labels     handler.LabelRepository
	Checklists handler.ChecklistRepository
	Items      handler.ChecklistItemRepository
	Access     handler.Access
	Session    session.Deps
	Settings   session.Settings
	Store      store.Options
}

func Init(cfg *config.Config) (*Server, error) {
	logger := log.StandardLogger()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if cfg.MigrationsEnabled {
		if err := database.Migrate(cfg.MigrationURL(), logger); err != nil {
			return nil, err
		}
	}
	db, err := database.Open(cfg.DSN(), logger)
	if err != nil {
		return nil, err
	}
	log.Info("✅ Connected to database")

	s := &Server{DB: db, Config: cfg}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	var changes feed.Feed
	var publisher feed.Publisher
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		s.redis = redis.NewClient(opts)
		if err := s.redis.Ping(s.ctx).Err(); err != nil {
			return nil, err
		}
		rf := feed.NewRedisFeed(s.redis, cfg.FeedChannelPrefix, logger)
		changes, publisher = rf, rf
		log.Info("✅ Connected to Redis change feed")
	} else {
		s.hub = feed.NewHub(feed.DefaultHubBuffer, logger)
		changes, publisher = s.hub, s.hub
		log.Info("ℹ️  Using in-process change feed")
	}
	notifier := feed.NewNotifier(publisher, logger)

	users := repository.NewUserRepository(db)
	boards := repository.NewBoardRepository(db, notifier)
	lists := repository.NewListRepository(db, notifier)
	cards := repository.NewCardRepository(db, notifier)
	comments := repository.NewCommentRepository(db, notifier)
	members := repository.NewMemberRepository(db, notifier)
	labels := repository.NewLabelRepository(db, notifier)

	opts := store.Options{
		RollbackOnFailure: cfg.StoreRollbackOnFailure,
		SingleFlight:      cfg.StoreSingleFlight,
	}
	settings := session.DefaultSettings()
	settings.OperationTimeout = cfg.OperationTimeout
	settings.FetchConcurrency = cfg.FetchConcurrency
	settings.Store = opts

	s.Engine = Routes(s.ctx, Components{
		Tokens:     auth.NewManager(cfg.JWTSecret, cfg.JWTExpiry),
		Users:      users,
		Boards:     boards,
		Lists:      lists,
		Cards:      cards,
		Comments:   comments,
		Members:    members,
		Labels:     labels,
		Checklists: repository.NewChecklistRepository(db, notifier),
		Items:      repository.NewChecklistItemRepository(db, notifier),
		Access:     members,
		Session: session.Deps{
			Feed:     changes,
			Access:   members,
			Boards:   boards,
			Lists:    lists,
			Cards:    cards,
			Comments: comments,
			Members:  members,
			Labels:   labels,
			Logger:   logger,
		},
		Settings: settings,
		Store:    opts,
	}, s.healthy)
	return s, nil
}

// Routes builds the gin engine. Websocket sessions live until ctx is done.
func Routes(ctx context.Context, c Components, healthy func(context.Context) error) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log.StandardLogger()))

	userHandler := handler.NewUserHandler(c.Users, c.Tokens)
	boardHandler := handler.NewBoardHandler(c.Boards, c.Access)
	listHandler := handler.NewListHandler(c.Lists, c.Access, c.Store)
	cardHandler := handler.NewCardHandler(c.Cards, c.Lists, c.Access, c.Store)
	commentHandler := handler.NewCommentHandler(c.Comments, c.Cards, c.Users, c.Access)
	memberHandler := handler.NewMemberHandler(c.Members, c.Users, c.Access)
	labelHandler := handler.NewLabelHandler(c.Labels, c.Cards, c.Access)
	checklistHandler := handler.NewChecklistHandler(c.Checklists, c.Items, c.Cards, c.Access, c.Store)
	wsHandler := handler.NewWSHandler(ctx, c.Session, c.Settings)

	// Public routes
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/healthz", func(g *gin.Context) {
		if err := healthy(g.Request.Context()); err != nil {
			g.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		g.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(c.Tokens))
	{
		// Board routes
		authorized.POST("/boards", boardHandler.Create)
		authorized.GET("/boards", boardHandler.GetAll)
		authorized.GET("/boards/:id", boardHandler.GetByID)
		authorized.PUT("/boards/:id", boardHandler.Update)
		authorized.DELETE("/boards/:id", boardHandler.Delete)

		// Member routes
		authorized.GET("/boards/:id/members", memberHandler.GetAll)
		authorized.POST("/boards/:id/members", memberHandler.Add)
		authorized.PUT("/members/:id", memberHandler.Update)
		authorized.DELETE("/members/:id", memberHandler.Remove)

		// List routes
		authorized.GET("/boards/:id/lists", listHandler.GetAll)
		authorized.POST("/boards/:id/lists", listHandler.Create)
		authorized.POST("/boards/:id/lists/reorder", listHandler.Reorder)
		authorized.PUT("/lists/:id", listHandler.Update)
		authorized.DELETE("/lists/:id", listHandler.Delete)

		// Card routes
		authorized.GET("/lists/:id/cards", cardHandler.GetAll)
		authorized.POST("/lists/:id/cards", cardHandler.Create)
		authorized.POST("/lists/:id/cards/reorder", cardHandler.Reorder)
		authorized.GET("/cards/:id", cardHandler.GetByID)
		authorized.PUT("/cards/:id", cardHandler.Update)
		authorized.DELETE("/cards/:id", cardHandler.Delete)
		authorized.POST("/cards/:id/move", cardHandler.Move)

		// Comment routes
		authorized.GET("/cards/:id/comments", commentHandler.GetAll)
		authorized.POST("/cards/:id/comments", commentHandler.Create)
		authorized.PUT("/comments/:id", commentHandler.Update)
		authorized.DELETE("/comments/:id", commentHandler.Delete)

		// Label routes
		authorized.GET("/boards/:id/labels", labelHandler.GetAll)
		authorized.POST("/boards/:id/labels", labelHandler.Create)
		authorized.PUT("/labels/:id", labelHandler.Update)
		authorized.DELETE("/labels/:id", labelHandler.Delete)
		authorized.GET("/cards/:id/labels", labelHandler.GetForCard)
		authorized.POST("/cards/:id/labels/:labelId", labelHandler.Attach)
		authorized.DELETE("/cards/:id/labels/:labelId", labelHandler.Detach)

		// Checklist routes
		authorized.GET("/cards/:id/checklists", checklistHandler.GetAll)
		authorized.POST("/cards/:id/checklists", checklistHandler.Create)
		authorized.POST("/cards/:id/checklists/reorder", checklistHandler.Reorder)
		authorized.PUT("/checklists/:id", checklistHandler.Update)
		authorized.DELETE("/checklists/:id", checklistHandler.Delete)
		authorized.GET("/checklists/:id/items", checklistHandler.GetItems)
		authorized.POST("/checklists/:id/items", checklistHandler.CreateItem)
		authorized.POST("/checklists/:id/items/reorder", checklistHandler.ReorderItems)
		authorized.PUT("/items/:id", checklistHandler.UpdateItem)
		authorized.DELETE("/items/:id", checklistHandler.DeleteItem)
		authorized.POST("/items/:id/toggle", checklistHandler.ToggleItem)
		authorized.POST("/items/:id/move", checklistHandler.MoveItem)

		// Live board session
		authorized.GET("/ws/boards/:id", wsHandler.Serve)
	}
	return r
}

func (s *Server) healthy(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if s.redis != nil {
		return s.redis.Ping(ctx).Err()
	}
	return nil
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		log.Infof("🚀 Server running on port %s", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to listen: %s", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 Shutting down server...")

	// websocket connections are hijacked, so Shutdown does not wait for them
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %s", err)
	}
	s.close()

	log.Info("✅ Server exited properly")
}

func (s *Server) close() {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.WithError(err).Warn("failed to close redis client")
		}
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
