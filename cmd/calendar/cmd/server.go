package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/Muhametii00/calendar/api"
	"github.com/Muhametii00/calendar/biometric"
	"github.com/Muhametii00/calendar/calendar"
	"github.com/Muhametii00/calendar/credential/localidp"
	"github.com/Muhametii00/calendar/flags/bboltflags"
	"github.com/Muhametii00/calendar/internal/util"
	"github.com/Muhametii00/calendar/lifecycle"
	"github.com/Muhametii00/calendar/profile"
	"github.com/Muhametii00/calendar/session"
	bboltstorage "github.com/Muhametii00/calendar/storage/bbolt"
)

var (
	port        int
	dataDir     string
	sensorAgent string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the calendar session service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dataDir, "calendar.db"), nil)
		if err != nil {
			return fmt.Errorf("failed to open record storage: %w", err)
		}
		defer repo.Close()

		flagStore, err := bboltflags.NewStoreFromFile(filepath.Join(dataDir, "flags.db"), nil)
		if err != nil {
			return fmt.Errorf("failed to open flag storage: %w", err)
		}
		defer flagStore.Close()

		masterKey, err := loadOrCreateMasterKey(filepath.Join(dataDir, "master.key"))
		if err != nil {
			return err
		}
		defer util.WipeBytes(masterKey)

		provider, err := localidp.New(repo, masterKey, localidp.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create identity provider: %w", err)
		}

		events := calendar.NewStore(repo, masterKey, calendar.WithLogger(logger))
		profiles, err := profile.NewStore(repo, masterKey, profile.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create profile store: %w", err)
		}

		var sensor biometric.Sensor
		if sensorAgent != "" {
			sensor = biometric.NewAgentSensor(sensorAgent)
			logger.Info("using sensor agent", "url", sensorAgent)
		} else {
			sensor = biometric.Unavailable()
			logger.Info("no sensor agent configured, biometrics disabled")
		}

		feed := lifecycle.NewFeed()
		controller := session.NewController(provider, sensor, flagStore, feed,
			session.WithLogger(logger),
			session.WithProfileWriter(profiles),
			session.WithSeeder(starterSeeder{events: events}),
		)

		runCtx, cancelRun := context.WithCancel(context.Background())
		defer cancelRun()
		controller.Start(runCtx)
		defer controller.Close()

		if err := provider.Start(runCtx); err != nil {
			return fmt.Errorf("failed to start identity provider: %w", err)
		}

		a := api.New(controller, events, profiles, feed, api.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

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

		logger.Info("server started", "port", port, "data_dir", dataDir, "version", Version)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
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

// starterSeeder populates a new account's current day with sample
// events.
type starterSeeder struct {
	events *calendar.Store
}

func (s starterSeeder) Seed(ctx context.Context, accountID string) error {
	return s.events.SeedSamples(ctx, accountID, calendar.NewDateKey(time.Now()))
}

// loadOrCreateMasterKey reads the 32-byte service master key, creating
// it on first run with owner-only permissions.
func loadOrCreateMasterKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != util.AESKeySize {
			return nil, fmt.Errorf("master key file %s has wrong length %d", path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key, err = util.RandomBytes(util.AESKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write master key: %w", err)
	}
	return key, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&sensorAgent, "sensor-agent", "", "Base URL of the device biometric sensor agent")
}
