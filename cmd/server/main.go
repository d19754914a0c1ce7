package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/api/handlers"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/api/middleware"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/camera"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/cleanup"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/database"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/imaging"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/integrations/visionhub"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/logger"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/mqtt"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/server/sse"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/session"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/tracking"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Starting AttendKiosk server...")

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	repo := database.NewSQLiteRepository(db)

	store := session.NewSQLiteStore(repo, cfg.Session.ExpiryDays)
	sess, err := store.GetOrCreate()
	if err != nil {
		log.Fatalf("Failed to initialize trial session: %v", err)
	}
	log.Infof("Trial session %s active, expires %s", sess.ID, sess.ExpiresAt.Format(time.RFC3339))

	hubService := sse.NewHub()
	go hubService.Run()

	vhClient := visionhub.NewClient(cfg.VisionHub)
	if ok, err := vhClient.Ping(context.Background()); !ok {
		// Not fatal: recognition just fails until the backend is reachable.
		log.Warnf("Recognition backend is not reachable yet: %v", err)
	}

	engine := tracking.NewEngine(vhClient, cfg.VisionHub.OrgRef, cfg.Workflow.StalenessWindow)
	engine.SetHistory(repo, sess.ID)

	camSource, err := camera.New(cfg.Camera)
	if err != nil {
		log.Fatalf("Invalid camera configuration: %v", err)
	}

	mqttClient, err := mqtt.NewClient(cfg.MQTT)
	if err != nil {
		log.Warnf("MQTT publisher could not be created: %v", err)
	}
	if mqttClient != nil {
		if err := mqttClient.Start(); err != nil {
			log.Warnf("MQTT publisher failed to connect: %v", err)
		}
	}

	codec := imaging.NewCodec(cfg.Workflow.MaxFrameSize, cfg.Workflow.EncodeQuality)

	opts := workflow.Options{Hub: hubService}
	if mqttClient != nil {
		opts.Notifier = mqttClient
	}
	controller := workflow.NewController(cfg.Workflow, store, engine, camSource, codec, vhClient, opts)
	controller.Start()

	cleanupService := cleanup.NewService(repo, cfg.Cleanup.RetentionDays, 6*time.Hour)
	if cleanupService != nil {
		cleanupService.StartBackgroundCleanup()
	}

	router := setupRouter(cfg, store, controller, repo, hubService)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	controller.Close()
	if cleanupService != nil {
		cleanupService.StopBackgroundCleanup()
	}
	if mqttClient != nil {
		mqttClient.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	log.Info("Server stopped.")
}

func setupRouter(cfg *config.Config, store session.Store, controller *workflow.Controller,
	repo database.Repository, hub *sse.Hub) *gin.Engine {

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "x-api-key")
	router.Use(cors.New(corsConfig))

	api := router.Group("/api")
	api.Use(middleware.I18n(cfg.I18n))

	handlers.NewKioskHandler(cfg, store, controller, repo, hub).RegisterRoutes(api)
	handlers.NewSystemHandler().RegisterRoutes(api)

	return router
}
