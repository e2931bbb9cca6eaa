package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image3d-service/internal/adapters/primary/http/handlers"
	"image3d-service/internal/adapters/primary/http/middleware"
	"image3d-service/internal/adapters/primary/http/web"
	"image3d-service/internal/adapters/secondary/fsstore"
	"image3d-service/internal/adapters/secondary/gradio"
	"image3d-service/internal/adapters/secondary/prometheus"
	"image3d-service/internal/config"
	"image3d-service/internal/core/domain"
	output "image3d-service/internal/core/ports/output"
	"image3d-service/internal/core/services"
	"image3d-service/internal/retry"

	"github.com/gin-gonic/gin"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	defaults, err := generationDefaults(cfg.Defaults)
	if err != nil {
		log.Fatalf("generation defaults: %v", err)
	}

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters (Output Ports)
	fs := afero.NewOsFs()
	workspace := fsstore.NewWorkspace(fs, &cfg.Workspace)
	if err := workspace.EnsureLayout(); err != nil {
		log.Fatalf("prepare workspace: %v", err)
	}
	log.WithField("output_dir", workspace.OutputDir()).Info("workspace ready")

	inferenceClient := gradio.NewClient(&cfg.Inference, fs)
	log.WithFields(log.Fields{
		"url":       cfg.Inference.URL,
		"api_name":  cfg.Inference.APIName,
		"has_token": cfg.Inference.Token != "",
	}).Info("inference client initialized")

	// Metrics (Optional - based on config)
	var metrics output.MetricsRecorder = output.NopMetrics{}
	var recorder *prometheus.Recorder
	if cfg.Metrics.Enabled {
		recorder = prometheus.NewRecorder(promclient.DefaultRegisterer)
		metrics = recorder
		log.Info("prometheus metrics enabled")
	} else {
		log.Info("prometheus metrics disabled")
	}

	// Core Services (Application Layer)
	submissionSvc := services.NewSubmissionService(
		workspace,
		inferenceClient,
		metrics,
		services.NewImageNormalizer(cfg.Workspace.CanonicalFormat),
		services.SubmissionConfig{
			Retry: retry.Policy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				BaseDelay:   cfg.Retry.BaseDelay,
				MaxDelay:    cfg.Retry.MaxDelay,
				Multiplier:  cfg.Retry.Multiplier,
			},
			Probe: cfg.Inference.ProbeEnabled,
		},
	)

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(submissionSvc, defaults, cfg.Server.UploadMaxBytes)

	tmpl, err := web.Templates()
	if err != nil {
		log.Fatalf("parse templates: %v", err)
	}

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())
	if recorder != nil {
		router.Use(middleware.Metrics(recorder))
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	router.MaxMultipartMemory = cfg.Server.UploadMaxBytes
	router.SetHTMLTemplate(tmpl)

	h.RegisterPages(router)
	h.RegisterProbes(router)

	api := router.Group("/api/v1")
	h.RegisterRoutes(api)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func generationDefaults(d config.GenerationDefaults) (domain.GenerationParameters, error) {
	meshInit, err := domain.ParseMeshInit(d.MeshInit)
	if err != nil {
		return domain.GenerationParameters{}, err
	}
	p := domain.GenerationParameters{
		RemoveBackground: d.RemoveBackground,
		Seed:             d.Seed,
		GenerateVideo:    d.GenerateVideo,
		RefineDetails:    d.RefineDetails,
		ExpansionWeight:  d.ExpansionWeight,
		MeshInit:         meshInit,
	}
	return p, p.Validate()
}
