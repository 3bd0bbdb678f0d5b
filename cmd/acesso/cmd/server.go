package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Thalikbussacro/acesso-clientes/api"
	"github.com/Thalikbussacro/acesso-clientes/internal/util"
	bboltstorage "github.com/Thalikbussacro/acesso-clientes/storage/bbolt"
)

var (
	port            int
	dataDir         string
	jwtSecret       string
	idleTimeout     time.Duration
	persistSessions bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the vault server",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine; flags and real env still apply.
		godotenv.Load()

		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		repo, err := bboltstorage.NewRepositoryFromFile(dataDir+"/acesso.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open record storage: %w", err)
		}
		defer repo.Close()

		secret := jwtSecret
		if secret == "" {
			secret = os.Getenv("ACESSO_JWT_SECRET")
		}
		if secret == "" {
			// Ephemeral secret: tokens die with the process.
			random, err := util.RandomHex(32)
			if err != nil {
				return fmt.Errorf("failed to generate token secret: %w", err)
			}
			secret = random
			fmt.Println("ACESSO_JWT_SECRET not set; using an ephemeral token secret")
		}

		opts := []api.Option{api.WithIdleTimeout(idleTimeout)}
		if persistSessions {
			opts = append(opts, api.WithSessionStore(api.NewPersistentSessionStore(repo)))
		}
		a := api.New(repo, []byte(secret), opts...)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		a.StartSweeper(ctx)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/api", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (data: %s)...\n", port, dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "Token signing secret (or env ACESSO_JWT_SECRET)")
	serverCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 30*time.Minute, "Session inactivity timeout")
	serverCmd.Flags().BoolVar(&persistSessions, "persist-sessions", false, "Persist session metadata so tokens survive restarts (vault still comes back locked)")
}
