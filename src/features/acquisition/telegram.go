package acquisition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/contre95/soulfetch/src/features/jobs"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramHandler handles Telegram commands for the acquisition feature
type TelegramHandler struct {
	service    *Service
	jobService jobs.JobService
}

// NewTelegramHandler creates a new Telegram handler for the acquisition feature
func NewTelegramHandler(service *Service, jobService jobs.JobService) *TelegramHandler {
	return &TelegramHandler{service: service, jobService: jobService}
}

// HandleCommand processes acquisition Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	var text string
	switch command {
	case "acquire":
		text = h.handleAcquire(args)
	case "inflight":
		text = h.handleInFlight()
	case "stop":
		text = fmt.Sprintf("🚫 Cancelled %d downloads", h.service.CancelAll())
	case "failures":
		text = h.handleFailures()
	default:
		text = "❌ Unknown command. Use /acquire, /inflight, /stop or /failures"
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bot.Send(msg)
	return err
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"acquire":  "Acquire artists: /acquire [artist, artist...] (empty uses the artists file)",
		"inflight": "Show tracks being downloaded",
		"stop":     "Cancel every running download",
		"failures": "Show tracks that need manual attention",
	}
}

func (h *TelegramHandler) handleAcquire(args string) string {
	var artists []string
	for _, a := range strings.Split(args, ",") {
		if a = strings.TrimSpace(a); a != "" {
			artists = append(artists, a)
		}
	}
	jobID, err := StartAcquireJob(h.jobService, RunRequest{Artists: artists})
	if err != nil {
		return "❌ " + err.Error()
	}
	if len(artists) == 0 {
		return fmt.Sprintf("⬇️ Acquisition started from the artists file\nJob: `%s`", jobID)
	}
	return fmt.Sprintf("⬇️ Acquisition started for %d artists\nJob: `%s`", len(artists), jobID)
}

func (h *TelegramHandler) handleInFlight() string {
	entries := h.service.InFlight()
	if len(entries) == 0 {
		return "💤 *Nothing in flight*"
	}
	var b strings.Builder
	b.WriteString("⬇️ *In flight*\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s - %s (%s)\n", e.Artist, e.TrackName, time.Since(e.StartedAt).Round(time.Second))
	}
	return b.String()
}

func (h *TelegramHandler) handleFailures() string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	records, err := h.service.Failures(ctx)
	if err != nil {
		return "❌ Failed to read failure ledger: " + err.Error()
	}
	if len(records) == 0 {
		return "✅ *No failed tracks*"
	}
	byReason := make(map[string]int)
	for _, r := range records {
		byReason[r.Reason]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ *%d tracks need attention*\n\n", len(records))
	for reason, count := range byReason {
		fmt.Fprintf(&b, "• %s: %d\n", reason, count)
	}
	return b.String()
}
