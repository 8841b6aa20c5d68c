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

	"github.com/google/uuid"

	"github.com/scholamates/neuralearn-server/internal/api"
	"github.com/scholamates/neuralearn-server/internal/auth"
	"github.com/scholamates/neuralearn-server/internal/config"
	"github.com/scholamates/neuralearn-server/internal/core"
	"github.com/scholamates/neuralearn-server/internal/logging"
	"github.com/scholamates/neuralearn-server/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)

	// Command line flag for provisioning device pairing codes
	provisionFlag := flag.Int("provision", 0, "Provision N device pairing codes and exit")
	flag.Parse()

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer dbStore.Close()

	if *provisionFlag > 0 {
		for i := 0; i < *provisionFlag; i++ {
			code, err := dbStore.InsertDeviceCode(context.Background(), uuid.NewString())
			if err != nil {
				log.WithError(err).Fatal("failed to provision device code")
			}
			fmt.Println(code.Code)
		}
		log.WithField("count", *provisionFlag).Info("device codes provisioned, exiting")
		return
	}

	llmService, err := core.NewLLMService(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize LLM service")
	}
	defer llmService.Close()

	tokens := auth.NewTokenService(cfg.JWTSecret)
	accountService := core.NewAccountService(dbStore, tokens, log)
	chatService := core.NewChatService(dbStore, llmService, log)
	deviceService := core.NewDeviceService(dbStore, tokens, log)

	apiHandler := api.NewAPIHandler(accountService, chatService, deviceService, tokens, log)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // streamed completions can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", serverAddr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited gracefully")
}
