package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/PabloGalante/prepwise-api/internal/adapters/auth"
	httpadapter "github.com/PabloGalante/prepwise-api/internal/adapters/http"
	"github.com/PabloGalante/prepwise-api/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/prepwise-api/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/prepwise-api/internal/adapters/storage/memory"
	sqlstore "github.com/PabloGalante/prepwise-api/internal/adapters/storage/sql"
	"github.com/PabloGalante/prepwise-api/internal/adapters/vapi"
	"github.com/PabloGalante/prepwise-api/internal/app/call"
	"github.com/PabloGalante/prepwise-api/internal/app/feedback"
	"github.com/PabloGalante/prepwise-api/internal/app/interview"
	"github.com/PabloGalante/prepwise-api/internal/config"
	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	observability.Configure(os.Stdout, cfg.LogLevel)
	log := observability.Logger()

	ctx := context.Background()

	// Choose between mock and Gemini by config (useful for dev)
	var llmClient domain.LLMClient
	if cfg.UseMockLLM {
		log.Info("using mock LLM client")
		llmClient = llm.NewMockLLM()
	} else {
		log.Info("using Gemini LLM client", "model", cfg.ModelName, "api_key_backend", cfg.GeminiAPIKey != "")
		llmClient, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:    cfg.GeminiAPIKey,
			ProjectID: cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			fatal("error initializing Gemini client", err)
		}
	}

	var (
		interviewStore domain.InterviewStore
		feedbackStore  domain.FeedbackStore
		closeStore     io.Closer
	)

	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using Firestore storage", "project", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			fatal("error initializing Firestore store", err)
		}

		// 1 store, implements 2 interfaces
		interviewStore, feedbackStore, closeStore = fsStore, fsStore, fsStore

	case "sql":
		log.Info("using SQL storage", "driver", cfg.DBDriver)
		db, err := sqlstore.NewStore(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			fatal("error initializing SQL store", err)
		}
		interviewStore, feedbackStore, closeStore = db, db, db

	default:
		log.Info("using in-memory storage")
		interviewStore = memstore.NewInterviewStore()
		feedbackStore = memstore.NewFeedbackStore()
	}

	interviewSvc := interview.NewService(llmClient, interviewStore, cfg.CoverImages)
	feedbackSvc := feedback.NewService(llmClient, feedbackStore)

	// Voice calls
	router := vapi.NewRouter(cfg.VapiWebhookSecret)
	vapiClient := vapi.NewClient(cfg.VapiAPIKey, router, vapi.WithBaseURL(cfg.VapiBaseURL))
	calls := call.NewManager(
		func() domain.VoiceChannel { return vapiClient.NewChannel() },
		feedbackSvc,
		call.Workflows{
			GenerateID:    cfg.GenerateWorkflowID,
			InterviewerID: cfg.InterviewerWorkflowID,
		},
	)

	var authn auth.Authenticator = auth.HeaderAuthenticator{}
	if cfg.SessionSecret != "" {
		authn, err = auth.NewJWTAuthenticator(cfg.SessionSecret)
		if err != nil {
			fatal("error initializing authenticator", err)
		}
	} else {
		log.Warn("no session secret configured, trusting X-User-ID headers")
	}

	handler := httpadapter.NewServer(httpadapter.Deps{
		Interviews: interviewSvc,
		Feedback:   feedbackSvc,
		Calls:      calls,
		Auth:       authn,
		Webhook:    router,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("PrepWise API listening", "port", cfg.Port, "mode", cfg.Mode, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			fatal("http server crashed", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	// waits for feedback saves of calls that just ended
	calls.Close()

	if closeStore != nil {
		if err := closeStore.Close(); err != nil {
			log.Error("store close error", "error", err)
		}
	}
	log.Info("shutdown complete")
}

func fatal(msg string, err error) {
	observability.Logger().Error(msg, "error", err)
	os.Exit(1)
}
