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

	"trivia-arena/internal/app"
	"trivia-arena/internal/config"
	"trivia-arena/internal/domain"
	"trivia-arena/internal/infra/memory"
	pgstore "trivia-arena/internal/infra/postgres"
	redisstore "trivia-arena/internal/infra/redis"
	transport "trivia-arena/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the match server",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgstore.NewQuestionLoader(pool)
	}

	rules := rulesFromConfig(cfg)
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)

	var supply app.QuestionSupply
	if redisClient != nil {
		supply = redisstore.NewQuestionSupply(redisClient, loader, questionTTL)
	} else {
		supply = memory.NewQuestionSupply(loader, questionTTL)
	}

	var profiles app.ProfileStore = memory.NewProfileStore()
	if pool != nil {
		profiles = pgstore.NewProfileStore(pool)
	}

	var grace app.GraceSet = memory.NewGraceSet(rules.GraceWindow)
	if redisClient != nil {
		grace = redisstore.NewGraceSet(redisClient, rules.GraceWindow)
	}

	registry := transport.NewRegistry()
	engine := app.NewEngine(supply, profiles, registry, grace, rules)
	wsHandler := transport.NewWSHandler(engine, registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia arena on :%s", finalPort)
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

func rulesFromConfig(cfg config.Config) app.Rules {
	rules := app.DefaultRules()
	if cfg.Match.EntryFee > 0 {
		rules.EntryFee = cfg.Match.EntryFee
	}
	if cfg.Match.QuestionsPerMatch > 0 {
		rules.QuestionsPerMatch = cfg.Match.QuestionsPerMatch
	}
	if cfg.Match.CountdownFrom > 0 {
		rules.CountdownFrom = cfg.Match.CountdownFrom
	}
	if cfg.Match.DefaultCategory != "" {
		rules.DefaultCategory = cfg.Match.DefaultCategory
	}
	if cfg.Match.DefaultDifficulty != "" {
		rules.DefaultDifficulty = domain.Difficulty(cfg.Match.DefaultDifficulty)
	}
	rules.GraceWindow = config.TTLDuration(cfg.Match.GraceWindow, rules.GraceWindow)
	return rules
}

// sampleQuestions provides a minimal pool for runs without Postgres; swap
// the loader for the Postgres-backed one in production.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:         "q-general-1",
			Text:       "What is the capital of France?",
			Options:    []string{"Berlin", "Paris", "Madrid", "Rome"},
			Correct:    "Paris",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-2",
			Text:       "How many continents are there?",
			Options:    []string{"5", "6", "7", "8"},
			Correct:    "7",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-3",
			Text:       "Which planet is known as the Red Planet?",
			Options:    []string{"Venus", "Mars", "Jupiter", "Saturn"},
			Correct:    "Mars",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-4",
			Text:       "What is the largest ocean on Earth?",
			Options:    []string{"Atlantic", "Indian", "Arctic", "Pacific"},
			Correct:    "Pacific",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-5",
			Text:       "How many sides does a hexagon have?",
			Options:    []string{"5", "6", "7", "8"},
			Correct:    "6",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-6",
			Text:       "What gas do plants absorb from the atmosphere?",
			Options:    []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Hydrogen"},
			Correct:    "Carbon dioxide",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-7",
			Text:       "Which metal is liquid at room temperature?",
			Options:    []string{"Iron", "Mercury", "Gold", "Silver"},
			Correct:    "Mercury",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-8",
			Text:       "How many minutes are in a full day?",
			Options:    []string{"1440", "1280", "1560", "1620"},
			Correct:    "1440",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-9",
			Text:       "What is the smallest prime number?",
			Options:    []string{"0", "1", "2", "3"},
			Correct:    "2",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-10",
			Text:       "Which country is home to the kangaroo?",
			Options:    []string{"South Africa", "Australia", "Brazil", "India"},
			Correct:    "Australia",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-11",
			Text:       "What is H2O commonly known as?",
			Options:    []string{"Salt", "Water", "Sugar", "Acid"},
			Correct:    "Water",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
		{
			ID:         "q-general-12",
			Text:       "How many colors are in a rainbow?",
			Options:    []string{"5", "6", "7", "8"},
			Correct:    "7",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		},
	}
}
