package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"jobflow/internal/archive"
	"jobflow/internal/config"
	"jobflow/internal/events"
	"jobflow/internal/identity"
	"jobflow/internal/models"
	"jobflow/internal/notify"
)

// printJSON renders v for orchestration chaining. Struct field order is
// fixed and map keys marshal sorted, so output is stable across runs.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// entryLabel names a pipeline entry for human output: company and title
// when known, else the folder, always with the queue id.
func entryLabel(e models.PipelineEntry) string {
	name := strings.TrimSpace(strings.TrimSpace(e.Company) + " " + strings.TrimSpace(e.Title))
	if name == "" {
		name = e.FolderName
	}
	if name == "" {
		return identity.QueueIDFor(e)
	}
	return fmt.Sprintf("%s (%s)", name, identity.QueueIDFor(e))
}

func itemLabel(it models.ReviewQueueItem) string {
	return entryLabel(it.Entry)
}

func draftsLabel(it models.ReviewQueueItem) string {
	return draftsWord(it.HasCoverLetter, it.HasResume)
}

func draftsWord(cover, resume bool) string {
	switch {
	case cover && resume:
		return "cover+resume"
	case cover:
		return "cover only"
	case resume:
		return "resume only"
	default:
		return "none"
	}
}

// sideChannelTimeout bounds the optional Redis/Postgres/Telegram calls
// so a dead endpoint never hangs a command.
const sideChannelTimeout = 5 * time.Second

// publishEvent emits one event when Redis is configured. Best-effort:
// failures log and the command succeeds anyway.
func publishEvent(cfg *config.Config, event string, payload interface{}) {
	if cfg.RedisURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
	defer cancel()

	pub, err := events.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("events: %v", err)
		return
	}
	defer pub.Close()
	if err := pub.Publish(ctx, event, payload); err != nil {
		log.Printf("events: %v", err)
	}
}

// mirrorSubmission forwards a submitted application to the optional
// Redis channel and Postgres archive.
func mirrorSubmission(cfg *config.Config, entry models.PipelineEntry) {
	publishEvent(cfg, events.Submitted, entry)
	mirrorToArchive(cfg, func(ctx context.Context, arch *archive.Archive) error {
		return arch.RecordSubmission(ctx, entry)
	})
}

// mirrorArchival records a rejected application in the Postgres archive.
// The decision event itself is published separately.
func mirrorArchival(cfg *config.Config, entry models.PipelineEntry, reason string) {
	mirrorToArchive(cfg, func(ctx context.Context, arch *archive.Archive) error {
		return arch.RecordArchival(ctx, entry, reason)
	})
}

func mirrorToArchive(cfg *config.Config, fn func(context.Context, *archive.Archive) error) {
	if cfg.PostgresDSN == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
	defer cancel()

	arch, err := archive.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Printf("archive: %v", err)
		return
	}
	defer arch.Close()
	if err := fn(ctx, arch); err != nil {
		log.Printf("archive: %v", err)
	}
}

// newNotifier returns the configured Telegram notifier, or a no-op one.
func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return notify.Nop{}
	}
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Printf("telegram: %v", err)
		return notify.Nop{}
	}
	return tg
}
