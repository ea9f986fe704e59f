package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"
	"trivia/config"
	"trivia/game"
	"trivia/logger"
	"trivia/migrations"
	"trivia/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 20 * time.Second

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func RegisterRoutes(r *gin.Engine, h *game.GameHandler) {
	r.GET("/ws", h.WebsocketHandler)
	r.GET("/rooms/:code", h.RoomHandler)
	r.GET("/results", h.ResultsHandler)
}

func loadQuestions(path string) (*game.QuestionBank, error) {
	if path == "" {
		return game.DefaultQuestionBank(), nil
	}
	return game.LoadQuestionBank(path)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logger.Setup(os.Stdout, cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	bank, err := loadQuestions(cfg.QuestionsFile)
	if err != nil {
		logger.Fatalf("Failed to load questions: %v", err)
	}
	logger.Infof("Question bank ready with %d questions", bank.Size())

	var (
		recorder game.ResultRecorder
		results  game.ResultReader
	)
	if cfg.PostgresURL != "" {
		if err := migrations.Migrate(cfg.PostgresURL); err != nil {
			logger.Fatalf("Failed to migrate archive: %v", err)
		}
		pgRepo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
		if err != nil {
			logger.Fatalf("Failed to connect to archive: %v", err)
		}
		defer pgRepo.Close()
		recorder, results = pgRepo, pgRepo
	} else {
		logger.Warning("POSTGRES_URL not set, finished games will not be archived")
	}

	roomConfigs := game.DefaultRoomConfigs()
	roomConfigs.QuestionsPerGame = cfg.QuestionsPerGame
	roomConfigs.FeedbackDelay = cfg.FeedbackDelay

	lobby := game.NewLobby(storage.NewMemoryStore(), bank, recorder, game.NewClock(), roomConfigs)

	if cfg.RoomIdleTTL > 0 {
		janitor, err := game.StartJanitor(lobby, cfg.JanitorSchedule, cfg.RoomIdleTTL)
		if err != nil {
			logger.Fatalf("Failed to start janitor: %v", err)
		}
		defer janitor.Stop()
	}

	r := CreateServer(cfg.AllowedOrigins)
	RegisterRoutes(r, game.NewGameHandler(lobby, lobby, results, cfg.AllowedOrigins))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server stopped: %v", err)
		}
	}()
	logger.Infof("Server started on :%s", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	<-sigCh
	logger.Info("SIGTERM or SIGINT received, closing rooms before shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warningf("HTTP shutdown: %v", err)
	}
	if err := lobby.Shutdown(ctx); err != nil {
		logger.Warningf("Rooms did not stop in time: %v", err)
	}
	logger.Info("Shutting down now")
}
