package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"maquiz-service/internal/app"
	"maquiz-service/internal/config"
	"maquiz-service/internal/infra/memory"
	"maquiz-service/internal/infra/postgres"
	rediscache "maquiz-service/internal/infra/redis"
	"maquiz-service/internal/infra/sqlite"
	transport "maquiz-service/internal/transport/http"
)

// roundSweepAge is how long an unevaluated round stays addressable.
const roundSweepAge = 2 * time.Hour

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trainer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// Backend selection: Postgres when configured, the embedded sqlite file
	// otherwise. Both implement the question source and the attempt store.
	var (
		source   app.QuestionSource
		attempts app.AttemptStore
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		source = postgres.NewQuestionSource(pool)
		attempts = postgres.NewAttemptStore(pool)
	} else {
		store, err := sqlite.NewStore(cfg.Sqlite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		source = store
		attempts = store
	}

	poolTTL := config.TTLDuration(cfg.Quiz.PoolTTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		source = rediscache.NewPoolCache(client, source, config.TTLDuration(cfg.Redis.TTL, poolTTL))
	} else {
		source = memory.NewPoolCache(source, poolTTL)
	}

	service := app.NewService(source, attempts, app.Limits{
		RoundSize:        cfg.Quiz.RoundSize,
		HistoryLimit:     cfg.Quiz.HistoryLimit,
		UserHistoryLimit: cfg.Quiz.UserHistoryLimit,
		HardestLimit:     cfg.Quiz.HardestLimit,
		MinSeen:          cfg.Quiz.MinSeen,
	})

	rounds := memory.NewRoundStore()
	handler := transport.NewHandler(service, rounds)
	router := transport.NewRouter(handler, transport.NewWSHandler(service))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepRounds(sweepCtx, rounds)

	go func() {
		log.Printf("starting maquiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sweepRounds drops abandoned rounds so the round store cannot grow without
// bound.
func sweepRounds(ctx context.Context, rounds *memory.RoundStore) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rounds.Sweep(roundSweepAge); n > 0 {
				log.Printf("swept %d stale rounds", n)
			}
		}
	}
}
