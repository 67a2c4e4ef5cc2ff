package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramHandler handles Telegram commands for the metrics feature
type TelegramHandler struct {
	service *Service
}

// NewTelegramHandler creates a new Telegram handler for the metrics feature
func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes metrics Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	text := "❌ Unknown metrics command. Use /stats"
	if command == "stats" {
		text = h.stats()
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bot.Send(msg)
	return err
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"stats": "Show download progress across the catalog",
	}
}

func (h *TelegramHandler) stats() string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	overview, err := h.service.GetOverview(ctx)
	if err != nil {
		return "❌ Failed to load metrics: " + err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Catalog*: %d%% of %d tracks available\n\n", overview.Percentage(), overview.TotalTracks)
	for _, m := range overview.StatusDistribution {
		fmt.Fprintf(&b, "• %s: %d\n", strings.ReplaceAll(m.Key, "_", " "), m.Value)
	}
	if overview.LedgerRecords > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d tracks in the failure ledger", overview.LedgerRecords)
	}
	return b.String()
}
