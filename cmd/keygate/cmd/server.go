package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/keygate/api"
	"github.com/keygate/config"
	"github.com/keygate/notify"
	"github.com/keygate/storage"
	bboltstorage "github.com/keygate/storage/bbolt"
	redisstorage "github.com/keygate/storage/redis"
)

var (
	addr     string
	dataDir  string
	redisURL string
	keysFile string
	tlsCert  string
	tlsKey   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication gate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.ListenAddr = addr
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if redisURL != "" {
			cfg.RedisURL = redisURL
		}
		if keysFile != "" {
			keys, err := config.LoadKeysFile(keysFile)
			if err != nil {
				return err
			}
			cfg.Keys = keys
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		if !cfg.HasPassword() {
			logger.Warn("KEYGATE_PASSWORD is not set; all logins will fail")
		}

		opts := []api.Option{api.WithLogger(logger)}

		// Session backend: redis > bbolt file > in-memory.
		var repo storage.Repository
		switch {
		case cfg.RedisURL != "":
			repo, err = redisstorage.NewRepositoryFromURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("opening redis session storage: %w", err)
			}
		case cfg.DataDir != "":
			if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}
			repo, err = bboltstorage.NewRepositoryFromFile(cfg.DataDir+"/sessions.db", nil)
			if err != nil {
				return fmt.Errorf("opening session storage: %w", err)
			}
		}
		if repo != nil {
			defer repo.Close()
			opts = append(opts, api.WithSessionStore(api.NewPersistentSessionStore(repo)))
		}

		if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
			opts = append(opts, api.WithNotifier(notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)))
		}

		if len(cfg.TrustedProxies) > 0 {
			opt, err := api.WithTrustedProxies(cfg.TrustedProxies)
			if err != nil {
				return err
			}
			opts = append(opts, opt)
		}

		a := api.New(cfg, opts...)
		defer a.Close()

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)
		if len(cfg.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   cfg.CORSOrigins,
				AllowedMethods:   []string{"GET", "POST"},
				AllowedHeaders:   []string{"Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api", a.Router())

		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		useTLS := tlsCert != "" && tlsKey != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on %s (mfa: %t, keys: %d)...\n",
			cfg.ListenAddr, cfg.MFAEnabled(), len(cfg.Keys))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
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
	serverCmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from KEYGATE_ADDR or :8080)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for persistent session data (empty: in-memory sessions)")
	serverCmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis URL for shared session storage (overrides --data-dir)")
	serverCmd.Flags().StringVar(&keysFile, "keys-file", "", "Path to the YAML file with the SSH key listing")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
