package hosting

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/contre95/soulfetch/src/features/acquisition"
	"github.com/contre95/soulfetch/src/features/config"
	"github.com/contre95/soulfetch/src/features/jobs"
	"github.com/contre95/soulfetch/src/features/metrics"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramCommandHandler interface that each feature implements
type TelegramCommandHandler interface {
	HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error
	GetCommands() map[string]string // Returns command -> description mapping
}

// commandMap routes a command to the feature handling it.
var commandMap = map[string]string{
	"acquire":  "acquisition",
	"inflight": "acquisition",
	"stop":     "acquisition",
	"failures": "acquisition",
	"jobs":     "jobs",
	"cancel":   "jobs",
	"config":   "config",
	"stats":    "metrics",
}

// TelegramBot handles Telegram bot operations
type TelegramBot struct {
	bot           *tgbotapi.BotAPI
	config        *config.Manager
	handlers      map[string]TelegramCommandHandler
	updates       tgbotapi.UpdatesChannel
	stopChan      chan struct{}
	mu            sync.Mutex
	pendingInputs map[string]string // chatID_messageID -> callbackData
}

// NewTelegramBot creates a new Telegram bot instance
func NewTelegramBot(cfg *config.Manager, acquisitionService *acquisition.Service, jobService *jobs.Service, metricsService *metrics.Service) (*TelegramBot, error) {
	telegramConfig := cfg.Get().Telegram

	if !telegramConfig.Enabled {
		return nil, fmt.Errorf("telegram bot is disabled in configuration")
	}

	if telegramConfig.Token == "" {
		return nil, fmt.Errorf("telegram bot token is not configured")
	}

	bot, err := tgbotapi.NewBotAPI(telegramConfig.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot initialized", "username", bot.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	telegramBot := &TelegramBot{
		bot:           bot,
		config:        cfg,
		handlers:      make(map[string]TelegramCommandHandler),
		updates:       bot.GetUpdatesChan(updateConfig),
		stopChan:      make(chan struct{}),
		pendingInputs: make(map[string]string),
	}

	telegramBot.RegisterHandler("acquisition", acquisition.NewTelegramHandler(acquisitionService, jobService))
	telegramBot.RegisterHandler("jobs", jobs.NewTelegramHandler(jobService))
	telegramBot.RegisterHandler("config", config.NewTelegramHandler(cfg))
	telegramBot.RegisterHandler("metrics", metrics.NewTelegramHandler(metricsService))

	return telegramBot, nil
}

// RegisterHandler registers a feature's command handler
func (t *TelegramBot) RegisterHandler(feature string, handler TelegramCommandHandler) {
	t.handlers[feature] = handler
	slog.Debug("Registered Telegram handler", "feature", feature)
}

// Start begins listening for Telegram updates
func (t *TelegramBot) Start() {
	slog.Info("Starting Telegram bot listener")

	for {
		select {
		case update := <-t.updates:
			if update.Message != nil {
				go t.handleMessage(update)
			}
			if update.CallbackQuery != nil {
				go t.handleMenuCallback(update.CallbackQuery)
			}
		case <-t.stopChan:
			slog.Info("Stopping Telegram bot listener")
			return
		}
	}
}

// Stop gracefully stops the bot
func (t *TelegramBot) Stop() {
	t.bot.StopReceivingUpdates()
	close(t.stopChan)
}

// NotifyJob tells the configured chats that a job has finished. Only
// acquisition runs are announced.
func (t *TelegramBot) NotifyJob(job *jobs.Job) {
	if job.Type != acquisition.JobType {
		return
	}
	t.Notify(JobNotification(job))
}

// Notify sends text to every configured notification chat.
func (t *TelegramBot) Notify(text string) {
	for _, chatID := range t.config.Get().Telegram.NotifyChats {
		t.sendMessage(chatID, text)
	}
}

// JobNotification renders the message announcing a finished job.
func JobNotification(job *jobs.Job) string {
	text := fmt.Sprintf("%s *%s* %s", jobs.StatusEmoji(job.Status), job.Name, job.Status)
	if msg, ok := job.Metadata["msg"].(string); ok && msg != "" {
		text += "\n" + msg
	}
	if job.Error != "" {
		text += "\nError: " + job.Error
	}
	return text
}

// authorized reports whether the sender is in the allowed users list.
func authorized(allowed []string, from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	username := from.UserName
	if username == "" {
		// Fallback to first name + last name
		username = from.FirstName
		if from.LastName != "" {
			username += " " + from.LastName
		}
	}
	return slices.Contains(allowed, username)
}

// handleMessage processes incoming messages
func (t *TelegramBot) handleMessage(update tgbotapi.Update) {
	message := update.Message
	chatID := message.Chat.ID

	allowedUsers := t.config.Get().Telegram.AllowedUsers
	if len(allowedUsers) == 0 {
		slog.Warn("No allowed users configured", "chat_id", chatID)
		t.sendMessage(chatID, "❌ Access denied: No users configured. Please add users to the config.")
		return
	}
	if !authorized(allowedUsers, message.From) {
		slog.Warn("Unauthorized user", "chat_id", chatID)
		t.sendMessage(chatID, "Unknown user, please add your user to the config")
		return
	}

	if message.IsCommand() {
		t.handleCommand(message)
		return
	}

	if message.ReplyToMessage != nil && t.handleReplyInput(message) {
		return
	}

	t.sendMessage(chatID, "🤖 Send /menu or /help to see available options")
}

// handleCommand processes bot commands
func (t *TelegramBot) handleCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	command := message.Command()
	args := message.CommandArguments()

	slog.Debug("Processing command", "command", command, "args", args, "chat_id", chatID)

	switch command {
	case "help":
		t.handleHelp(chatID)
	case "start", "menu":
		t.showMenu(chatID)
	default:
		if err := t.routeCommand(command, args, chatID); err != nil {
			slog.Error("Failed to handle command", "command", command, "error", err)
			t.sendMessage(chatID, "❌ Failed to process command")
		}
	}
}

// routeCommand routes commands to the appropriate feature handler
func (t *TelegramBot) routeCommand(command, args string, chatID int64) error {
	feature, exists := commandMap[command]
	if !exists {
		t.sendMessage(chatID, "❌ Unknown command. Send /help to see available commands.")
		return nil
	}

	handler, exists := t.handlers[feature]
	if !exists {
		t.sendMessage(chatID, fmt.Sprintf("❌ %s feature not available", escapeMarkdown(feature)))
		return nil
	}

	return handler.HandleCommand(t.bot, chatID, command, args)
}

// handleHelp lists every command of every registered handler.
func (t *TelegramBot) handleHelp(chatID int64) {
	var b strings.Builder
	b.WriteString("*🤖 Soulfetch Commands*\n\n")
	features := make([]string, 0, len(t.handlers))
	for feature := range t.handlers {
		features = append(features, feature)
	}
	slices.Sort(features)
	for _, feature := range features {
		commands := t.handlers[feature].GetCommands()
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&b, "/%s - %s\n", name, escapeMarkdown(commands[name]))
		}
	}
	b.WriteString("\n/menu - Show the main menu")
	t.sendMessage(chatID, b.String())
}

// showMenu shows main menu with inline keyboard
func (t *TelegramBot) showMenu(chatID int64) {
	text := `*🤖 Soulfetch Main Menu*

Choose an action below or use commands directly:`

	buttons := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("⬇️ Acquire", "menu_acquire"),
			tgbotapi.NewInlineKeyboardButtonData("📡 In flight", "menu_inflight"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("📊 Stats", "menu_stats"),
			tgbotapi.NewInlineKeyboardButtonData("⚠️ Failures", "menu_failures"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("📋 Jobs", "menu_jobs"),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Stop", "menu_stop"),
		},
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	if _, err := t.bot.Send(msg); err != nil {
		slog.Error("Failed to send menu", "error", err, "chat_id", chatID)
	}
}

// handleMenuCallback handles main menu callback queries
func (t *TelegramBot) handleMenuCallback(callback *tgbotapi.CallbackQuery) {
	// Answer callback to remove loading state
	t.bot.Request(tgbotapi.NewCallback(callback.ID, ""))

	if callback.Message == nil || !strings.HasPrefix(callback.Data, "menu_") {
		return
	}
	chatID := callback.Message.Chat.ID
	if !authorized(t.config.Get().Telegram.AllowedUsers, callback.From) {
		slog.Warn("Unauthorized menu callback", "chat_id", chatID)
		return
	}

	switch command := strings.TrimPrefix(callback.Data, "menu_"); command {
	case "acquire":
		t.promptForInput(chatID, "⬇️ *Acquire artists*\n\nReply with artist names or ids separated by commas, or `all` to use the artists file:", callback.Data)
	default:
		if err := t.routeCommand(command, "", chatID); err != nil {
			slog.Error("Failed to handle menu command", "command", command, "error", err)
			t.sendMessage(chatID, "❌ Failed to process menu selection")
		}
	}
}

// promptForInput sends a message that forces user to reply with input
func (t *TelegramBot) promptForInput(chatID int64, promptText, callbackData string) {
	msg := tgbotapi.NewMessage(chatID, promptText)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true}

	sentMsg, err := t.bot.Send(msg)
	if err != nil {
		slog.Error("Failed to send prompt", "error", err)
		return
	}

	t.mu.Lock()
	t.pendingInputs[fmt.Sprintf("%d_%d", chatID, sentMsg.MessageID)] = callbackData
	t.mu.Unlock()
}

// handleReplyInput handles replies to our input prompts
func (t *TelegramBot) handleReplyInput(message *tgbotapi.Message) bool {
	chatID := message.Chat.ID
	key := fmt.Sprintf("%d_%d", chatID, message.ReplyToMessage.MessageID)

	t.mu.Lock()
	callbackData, exists := t.pendingInputs[key]
	delete(t.pendingInputs, key)
	t.mu.Unlock()
	if !exists {
		return false
	}

	switch callbackData {
	case "menu_acquire":
		args := strings.TrimSpace(message.Text)
		if strings.EqualFold(args, "all") {
			args = ""
		}
		if err := t.routeCommand("acquire", args, chatID); err != nil {
			slog.Error("Failed to start acquisition from menu", "error", err)
			t.sendMessage(chatID, "❌ Failed to start acquisition")
		}
	default:
		return false
	}
	return true
}

// sendMessage sends a message to the specified chat
func (t *TelegramBot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		slog.Error("Failed to send message", "error", err, "chat_id", chatID)
	}
}

// escapeMarkdown escapes the characters that legacy Markdown treats as markup.
func escapeMarkdown(text string) string {
	return strings.NewReplacer("`", "\\`", "*", "\\*", "_", "\\_", "[", "\\[").Replace(text)
}
