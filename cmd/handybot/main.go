package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/aggregator"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/config"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/dispatch"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/parser"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/platform"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/recipients"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/reminder"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/storage"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/telegram"
)

func main() {
	log.Println("handybot - chat-to-task assistant")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN environment variable required")
	}
	if cfg.OpenAIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable required")
	}

	store, err := storage.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	tg, err := telegram.NewClient(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram client: %v", err)
	}

	directory := recipients.New(store)
	dispatcher := dispatch.New(directory, store, platform.RetryConfig{
		MaxRetries:    cfg.MaxRetries,
		BackoffFactor: cfg.BackoffFactor,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := aggregator.New(
		parser.NewOpenAI(cfg.OpenAIKey, os.Getenv("OPENAI_MODEL")),
		dispatcher,
		store,
		aggregator.Config{
			ThreadTimeout:      cfg.ThreadTimeout,
			VoiceThreadTimeout: cfg.VoiceThreadTimeout,
		},
		func(userID, chatID int64, messageID int, res *dispatch.Result, err error) {
			text := telegram.EscapeMarkdown("Something went wrong creating your task. Please try again.")
			if err == nil && res != nil {
				text = telegram.EscapeMarkdown(res.Feedback)
			}
			if sendErr := tg.SendMessage(ctx, chatID, text, messageID); sendErr != nil {
				log.Printf("[main] failed to deliver feedback to user %d: %v", userID, sendErr)
			}
		},
	)

	sched := reminder.New(store, tg, cfg.ReminderInterval)
	sched.Start()

	go tg.Poll(ctx, agg.Append)

	log.Println("[main] All subsystems started. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[main] Shutting down...")
	cancel()
	sched.Stop()
	log.Println("[main] Goodbye!")
}
