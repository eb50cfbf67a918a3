package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"maquiz-service/internal/app"
	"maquiz-service/internal/domain"
	"maquiz-service/internal/infra/postgres"
	pgmigrations "maquiz-service/internal/infra/postgres/migrations"
	rediscache "maquiz-service/internal/infra/redis"
)

func TestRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL, questionBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	source := rediscache.NewPoolCache(redisClient, postgres.NewQuestionSource(pool), 5*time.Minute)
	service := app.NewService(source, postgres.NewAttemptStore(pool), app.Limits{RoundSize: 5})

	round, err := service.NewRound(ctx, 5, app.AllCategories)
	if err != nil {
		t.Fatalf("new round: %v", err)
	}
	if len(round.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(round.Questions))
	}

	// Every seeded question has its correct answer at index 0; pick it for
	// all but the last question.
	for i, q := range round.Questions {
		option := 0
		if i == len(round.Questions)-1 {
			option = 1
		}
		if err := round.Answer(q.ID, option); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	attempt, err := service.Record(ctx, round, "u1", "alice@example.com")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if attempt.Score != 4 || attempt.Total != 5 {
		t.Fatalf("expected 4/5, got %d/%d", attempt.Score, attempt.Total)
	}

	// Re-evaluating must not add a second row.
	if _, err := service.Record(ctx, round, "u1", "alice@example.com"); err != nil {
		t.Fatalf("second record: %v", err)
	}

	summary, err := service.UserSummary(ctx, "u1", "alice@example.com")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.AttemptCount != 1 || summary.AveragePercent != 80 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	lb, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Ranked) != 1 || lb.Ranked[0].UserLabel != "alice@example.com" {
		t.Fatalf("unexpected leaderboard: %+v", lb.Ranked)
	}
	if lb.Ranked[0].AveragePercent != 80 || lb.Ranked[0].BestPercent != 80 {
		t.Fatalf("unexpected percentages: %+v", lb.Ranked[0])
	}

	// A second round from the cached pool must still see all questions.
	second, err := service.NewRound(ctx, 5, app.AllCategories)
	if err != nil {
		t.Fatalf("second round: %v", err)
	}
	if len(second.Questions) != 5 {
		t.Fatalf("expected 5 questions from cached pool, got %d", len(second.Questions))
	}

	if err := service.ResetUser(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	summary, err = service.UserSummary(ctx, "u1", "alice@example.com")
	if err != nil {
		t.Fatalf("summary after reset: %v", err)
	}
	if summary.AttemptCount != 0 {
		t.Fatalf("expected cleared history, got %d attempts", summary.AttemptCount)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "maquiz", "POSTGRES_PASSWORD": "maquizpass", "POSTGRES_DB": "maquizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://maquiz:maquizpass@%s:%s/maquizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect for seed: %v", err)
	}
	defer pool.Close()
	if err := postgres.NewQuestionSource(pool).ImportQuestions(ctx, questions); err != nil {
		t.Fatalf("import questions: %v", err)
	}
}

func questionBank() []domain.Question {
	qs := make([]domain.Question, 0, 8)
	for i := 1; i <= 8; i++ {
		qs = append(qs, domain.Question{
			ID:           fmt.Sprintf("q%d", i),
			Text:         fmt.Sprintf("question %d", i),
			Options:      []string{"right", "wrong", "also wrong"},
			CorrectIndex: 0,
			Active:       true,
			Category:     "Math",
		})
	}
	return qs
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
