package jobs

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramJobLimit = 10

var statusEmoji = map[JobStatus]string{
	JobStatusPending:   "⏳",
	JobStatusRunning:   "🔄",
	JobStatusCompleted: "✅",
	JobStatusFailed:    "❌",
	JobStatusCancelled: "🚫",
}

// StatusEmoji returns the emoji used for status in chat messages.
func StatusEmoji(status JobStatus) string {
	if e, ok := statusEmoji[status]; ok {
		return e
	}
	return "❓"
}

// TelegramHandler answers /jobs and /cancel.
type TelegramHandler struct {
	service *Service
}

func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	var text string
	switch command {
	case "jobs":
		text = h.list()
	case "cancel":
		text = h.cancel(strings.TrimSpace(args))
	default:
		text = "❌ Unknown jobs command. Use /jobs or /cancel <job id>"
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bot.Send(msg)
	return err
}

func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"jobs":   "Show recent jobs",
		"cancel": "Cancel a running job: /cancel <job id>",
	}
}

func (h *TelegramHandler) list() string {
	jobs := h.service.GetJobs()
	if len(jobs) == 0 {
		return "📋 *No jobs yet*"
	}
	var b strings.Builder
	b.WriteString("📋 *Recent Jobs*\n\n")
	for i, job := range jobs {
		if i == telegramJobLimit {
			fmt.Fprintf(&b, "_and %d more_\n", len(jobs)-i)
			break
		}
		fmt.Fprintf(&b, "%s `%s` %s: %s (%d%%)\n", StatusEmoji(job.Status), job.ID[:8], job.Name, job.Summary(), job.Progress)
	}
	return b.String()
}

// cancel cancels the newest job whose id starts with prefix.
func (h *TelegramHandler) cancel(prefix string) string {
	if prefix == "" {
		return "❌ Usage: /cancel <job id>"
	}
	for _, job := range h.service.GetJobs() {
		if !strings.HasPrefix(job.ID, prefix) {
			continue
		}
		if err := h.service.CancelJob(job.ID); err != nil {
			return "❌ " + err.Error()
		}
		return fmt.Sprintf("🚫 Cancelled `%s`", job.Name)
	}
	return "❌ No job matches `" + prefix + "`"
}
