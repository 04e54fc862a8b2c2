// Command server runs the front-end process (spec §9 "scheduling model"):
// a cooperative event loop serving HTTP and WebSocket connections, backed
// by the shared database and message broker that the worker processes
// also use.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/config"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/controller"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/database"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/docx"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/httpapi"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/livebus"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/llm"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/reaper"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"

	"github.com/gin-gonic/gin"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("meeting-minutes-app %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	cfg := config.Load()

	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Startup("init", fmt.Sprintf("server starting (%s, %s)", version, commit))

	if !cfg.CheckFFmpeg() {
		log.Fatalf("ffmpeg not found at %q; set FFMPEG_PATH", cfg.FFmpegPath)
	}

	if err := database.Initialize(cfg.DatabasePath); err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer database.Close()
	logger.Startup("database", "database ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := broker.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("broker connect failed: %v", err)
	}
	defer b.Close()
	logger.Startup("broker", "broker connected")

	var llmSvc llm.Service
	if cfg.LLMProvider == "ollama" {
		llmSvc = llm.NewOllamaService(cfg.LLMBaseURL)
	} else {
		var baseURL *string
		if cfg.LLMBaseURL != "" {
			baseURL = &cfg.LLMBaseURL
		}
		llmSvc = llm.NewOpenAIService(cfg.LLMAPIKey, baseURL)
	}

	renderer := docx.NewHTTPRenderer(cfg.DocxBaseURL)
	ctrl := controller.New(cfg, database.DB, b, llmSvc, renderer)

	hub := livebus.NewHub()
	defer hub.Shutdown()

	go func() {
		if err := hub.ConsumeBroker(ctx, b); err != nil && ctx.Err() == nil {
			logger.Error("livebus: broker subscription ended", "error", err.Error())
		}
	}()

	stale := reaper.New(repository.NewJobRepository(database.DB), cfg.ReaperInterval, cfg.ReaperTimeout)
	go stale.Run(ctx)
	go stale.WatchOrphans(ctx, cfg.SharedAudioPath, cfg.ReaperInterval)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Host == "localhost" {
		gin.SetMode(gin.DebugMode)
	}
	logger.SetGinOutput()
	router := httpapi.SetupRoutes(httpapi.NewHandler(ctrl, hub))

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Startup("http", fmt.Sprintf("http server listening on %s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced shutdown: %v", err)
	}
	logger.Info("server exited")
}
