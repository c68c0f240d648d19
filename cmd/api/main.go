package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/director/internal/api"
	"github.com/bobarin/director/internal/config"
	"github.com/bobarin/director/internal/credentials"
	"github.com/bobarin/director/internal/db"
	"github.com/bobarin/director/internal/jobstore"
	"github.com/bobarin/director/internal/orchestrator"
	"github.com/bobarin/director/internal/scheduler"
)

func main() {
	log.Println("Starting Director API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	jobs := jobstore.NewPostgresStore(database.DB)

	creds := devCredentialStore(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *scheduler.Scheduler
	var orch *orchestrator.Orchestrator
	if cfg.WorkerEnabled {
		sched, err = scheduler.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to scheduler redis: %v", err)
		}
		log.Println("Connected to scheduler redis")

		orch = orchestrator.New(jobs, sched, creds, cfg.MaxConcurrentShots)
		sched.OnResume(func(resumeCtx context.Context, jobID uuid.UUID) {
			if err := orch.Resume(resumeCtx, jobID); err != nil {
				log.Printf("[orchestrator] resume %s: %v", jobID, err)
			}
		})

		go func() {
			if err := sched.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("[scheduler] run exited: %v", err)
			}
		}()

		if err := orch.ResumeAll(ctx); err != nil {
			log.Printf("[orchestrator] resume all on startup: %v", err)
		}
		log.Println("Worker enabled: scheduler and orchestrator running")
	} else {
		// API-only mode: jobs can still be created, but nothing resumes
		// them until a worker process with WORKER_ENABLED=true does.
		orch = orchestrator.New(jobs, nil, creds, cfg.MaxConcurrentShots)
		log.Println("Worker disabled: API-only mode (WORKER_ENABLED=false)")
	}

	handler := api.NewHandler(database, jobs, creds, orch)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// devCredentialStore seeds a StaticStore from config's provider-default
// env vars — a stand-in for the real external credential-store
// collaborator (spec §6, out of this core's scope). It is keyed by the
// zero UUID, i.e. it only serves local development/demo owners; a real
// deployment replaces this with a Store backed by the actual credential
// service.
func devCredentialStore(cfg *config.Config) credentials.Store {
	store := credentials.NewStaticStore()
	owner := uuid.Nil

	if cfg.OpenAIKey != "" {
		store.Set(owner, credentials.CapabilityText, credentials.Credentials{ProviderTag: "openai", Token: cfg.OpenAIKey})
	}
	if cfg.GeminiKey != "" {
		store.Set(owner, credentials.CapabilityImage, credentials.Credentials{ProviderTag: "gemini", Token: cfg.GeminiKey})
	}
	if cfg.XAIKey != "" {
		store.Set(owner, credentials.CapabilityVideo, credentials.Credentials{ProviderTag: "xai", Token: cfg.XAIKey})
	}
	return store
}
