package hosting

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/contre95/soulscan/src/features/scanning"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramCommandHandler interface that each feature implements
type TelegramCommandHandler interface {
	HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error
	GetCommands() map[string]string                                             // Returns command -> description mapping
	HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool // Handle feature-specific callbacks
}

// commandMap routes bot commands to the feature handling them
var commandMap = map[string]string{
	"config":     "config",
	"scan":       "scanner",
	"scanstatus": "scanner",
}

// menuCommands maps menu buttons to a command and its arguments
var menuCommands = map[string][2]string{
	"menu_scan":       {"scan", ""},
	"menu_scan_full":  {"scan", "full"},
	"menu_scanstatus": {"scanstatus", ""},
	"menu_config":     {"config", ""},
}

// TelegramBot handles Telegram bot operations
type TelegramBot struct {
	bot      *tgbotapi.BotAPI
	config   *config.Manager
	handlers map[string]TelegramCommandHandler
	updates  tgbotapi.UpdatesChannel
	stopChan chan struct{}
}

// NewTelegramBot creates a new Telegram bot instance
func NewTelegramBot(cfg *config.Manager, scanService *scanning.Service) (*TelegramBot, error) {
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
		bot:      bot,
		config:   cfg,
		handlers: make(map[string]TelegramCommandHandler),
		updates:  bot.GetUpdatesChan(updateConfig),
		stopChan: make(chan struct{}),
	}

	telegramBot.RegisterHandler("config", config.NewTelegramHandler(cfg))
	telegramBot.RegisterHandler("scanner", scanning.NewTelegramHandler(scanService))
	telegramBot.SubscribeScanEvents(scanService.Events())

	return telegramBot, nil
}

// RegisterHandler registers a feature's command handler
func (t *TelegramBot) RegisterHandler(feature string, handler TelegramCommandHandler) {
	t.handlers[feature] = handler
	slog.Debug("Registered Telegram handler", "feature", feature)
}

// SubscribeScanEvents sends the report of every finished scan to the
// configured notification chats.
func (t *TelegramBot) SubscribeScanEvents(events *scanning.Events) {
	notify := func(stats scanning.ScanStats) {
		chatIDs := t.config.Get().Telegram.NotifyChatIDs
		if len(chatIDs) == 0 {
			return
		}
		report := scanning.FormatScanReport(&stats)
		for _, chatID := range chatIDs {
			go t.sendMessage(chatID, report)
		}
	}
	events.ScanComplete.Connect(notify)
	events.ScanAborted.Connect(notify)
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
				go t.handleCallbackQuery(update)
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

// isAllowed reports whether the sender is listed in the configuration
func (t *TelegramBot) isAllowed(user *tgbotapi.User) bool {
	if user == nil {
		return false
	}
	username := user.UserName
	if username == "" {
		username = user.FirstName
		if user.LastName != "" {
			username += " " + user.LastName
		}
	}
	return slices.Contains(t.config.Get().Telegram.AllowedUsers, username)
}

// handleMessage processes incoming messages
func (t *TelegramBot) handleMessage(update tgbotapi.Update) {
	message := update.Message
	chatID := message.Chat.ID

	if len(t.config.Get().Telegram.AllowedUsers) == 0 {
		slog.Warn("No allowed users configured", "chat_id", chatID)
		t.sendMessage(chatID, "❌ Access denied: No users configured. Please add users to the config.")
		return
	}
	if !t.isAllowed(message.From) {
		slog.Warn("Unauthorized user", "chat_id", chatID)
		t.sendMessage(chatID, "Unknown user, please add your user to the config")
		return
	}

	if !message.IsCommand() {
		t.sendMessage(chatID, "🤖 Send /menu or /help to see available options")
		return
	}

	command := message.Command()
	args := message.CommandArguments()
	slog.Debug("Processing command", "command", command, "args", args, "chat_id", chatID)

	switch command {
	case "help":
		t.handleHelp(chatID)
	case "start", "menu":
		t.handleMenu(chatID)
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

// escapeMarkdown escapes special characters for safe Markdown usage
func escapeMarkdown(text string) string {
	return strings.NewReplacer("`", "\\`", "*", "\\*", "_", "\\_", "[", "\\[").Replace(text)
}

// sendMessage sends a message to the specified chat
func (t *TelegramBot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := t.bot.Send(msg)
	if err != nil {
		slog.Error("Failed to send message", "error", err, "chat_id", chatID)
	}
}

// handleCallbackQuery handles callback queries from inline keyboards
func (t *TelegramBot) handleCallbackQuery(update tgbotapi.Update) {
	callback := update.CallbackQuery

	// Answer callback to remove loading state
	defer t.bot.Request(tgbotapi.NewCallback(callback.ID, ""))

	if !t.isAllowed(callback.From) || callback.Message == nil {
		return
	}

	if menu, ok := menuCommands[callback.Data]; ok {
		if err := t.routeCommand(menu[0], menu[1], callback.Message.Chat.ID); err != nil {
			slog.Error("Failed to handle menu command", "command", menu[0], "error", err)
			t.sendMessage(callback.Message.Chat.ID, "❌ Failed to process menu selection")
		}
		return
	}

	for _, handler := range t.handlers {
		if handler.HandleCallback(t.bot, callback) {
			return
		}
	}
}

// handleHelp lists the commands of every registered feature
func (t *TelegramBot) handleHelp(chatID int64) {
	var lines []string
	for _, handler := range t.handlers {
		for command, description := range handler.GetCommands() {
			lines = append(lines, fmt.Sprintf("/%s - %s", command, escapeMarkdown(description)))
		}
	}
	sort.Strings(lines)

	t.sendMessage(chatID, "*🤖 Soulscan commands*\n\n"+strings.Join(lines, "\n"))
}

// handleMenu shows main menu with inline keyboard
func (t *TelegramBot) handleMenu(chatID int64) {
	text := `*🤖 Soulscan Main Menu*

Choose an action below or use commands directly:`

	buttons := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🔄 Scan", "menu_scan"),
			tgbotapi.NewInlineKeyboardButtonData("🔁 Full scan", "menu_scan_full"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("📡 Status", "menu_scanstatus"),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Config", "menu_config"),
		},
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	if _, err := t.bot.Send(msg); err != nil {
		slog.Error("Failed to send menu", "error", err, "chat_id", chatID)
	}
}
