package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"maquiz-service/internal/config"
	"maquiz-service/internal/domain"
	"maquiz-service/internal/infra/postgres"
	"maquiz-service/internal/infra/sqlite"
)

// NewSeedCmd imports a JSON question file into the configured backend.
// The file is an array of question objects; malformed entries are skipped
// with a warning rather than aborting the import.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <questions.json>",
		Short: "Import questions from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, args[0])
		},
	}
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	questions, err := readQuestionFile(file)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("%s contains no usable questions", file)
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.NewQuestionSource(pool).ImportQuestions(ctx, questions); err != nil {
			return err
		}
	} else {
		store, err := sqlite.NewStore(cfg.Sqlite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.ImportQuestions(ctx, questions); err != nil {
			return err
		}
	}

	log.Printf("imported %d questions from %s", len(questions), file)
	return nil
}

// seedQuestion makes "active" optional in seed files: omitted means active.
type seedQuestion struct {
	domain.Question
	Active *bool `json:"active"`
}

func readQuestionFile(file string) ([]domain.Question, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var raw []seedQuestion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}

	questions := make([]domain.Question, 0, len(raw))
	for _, sq := range raw {
		q := sq.Question
		q.Active = sq.Active == nil || *sq.Active
		if q.ID == "" || !q.WellFormed() {
			log.Printf("skipping malformed question %q", q.ID)
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}
