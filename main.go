package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vadimpetrov/diacare-bot/internal/ai"
	"github.com/vadimpetrov/diacare-bot/internal/alerts"
	"github.com/vadimpetrov/diacare-bot/internal/bot"
	"github.com/vadimpetrov/diacare-bot/internal/bot/handlers"
	"github.com/vadimpetrov/diacare-bot/internal/config"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
	"github.com/vadimpetrov/diacare-bot/internal/scheduler"
	"github.com/vadimpetrov/diacare-bot/internal/services"
	"github.com/vadimpetrov/diacare-bot/internal/session"
)

// locationResolver adapts the user service for the scheduler.
type locationResolver struct {
	users *services.UserService
}

func (l locationResolver) UserLocation(ctx context.Context, userID uint) *time.Location {
	return l.users.UserLocationByID(ctx, userID)
}

func main() {
	if err := logger.Init(); err != nil {
		panic(err)
	}

	if err := godotenv.Load(); err != nil {
		logger.Warningf(".env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		logger.Fatalf("Failed to init logger: %v", err)
	}
	logger.Info("Configuration loaded successfully")

	db, err := database.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Fatalf("Failed to create AI client: %v", err)
	}
	defer aiClient.Close()

	userService := services.NewUserService(db)
	entryService := services.NewEntryService(db)
	reminderService := services.NewReminderService(db)
	alertService := services.NewAlertService(db)

	api, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		logger.Fatalf("Failed to create bot: %v", err)
	}
	notifier := bot.NewNotifier(api)

	sched := scheduler.New(reminderService, locationResolver{users: userService}, notifier)
	defer sched.Stop()
	sched.RescheduleAll(ctx)

	evaluator := alerts.New(alertService, notifier)
	defer evaluator.Stop()

	var sessions session.Store
	if cfg.Redis.Enabled {
		sessions, err = session.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("Using Redis session store")
	} else {
		sessions = session.NewMemoryStore()
		logger.Info("Using in-memory session store")
	}
	defer sessions.Close()

	telegramBot := bot.New(api, handlers.Dependencies{
		UserService: userService,
		EntrySvc:    entryService,
		ReminderSvc: reminderService,
		Scheduler:   sched,
		Alerts:      evaluator,
		AI:          aiClient,
		Sessions:    sessions,
	})
	logger.Info("Bot initialized successfully")

	if err := telegramBot.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalf("Bot stopped with error: %v", err)
	}
}
