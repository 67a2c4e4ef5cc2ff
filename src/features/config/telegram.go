package config

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramHandler answers /config with the redacted configuration.
type TelegramHandler struct {
	configManager *Manager
}

func NewTelegramHandler(configManager *Manager) *TelegramHandler {
	return &TelegramHandler{configManager: configManager}
}

func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	if command != "config" {
		return fmt.Errorf("unknown config command %q", command)
	}
	format, body := "yaml", h.configManager.GetYAML()
	if strings.EqualFold(strings.TrimSpace(args), "json") {
		format, body = "json", h.configManager.GetJSON()
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("⚙️ *Configuration*\n```%s\n%s\n```", format, body))
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bot.Send(msg)
	return err
}

func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"config": "Show configuration (add 'json' for JSON)",
	}
}
