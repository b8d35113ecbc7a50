package scanning

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramHandler handles Telegram commands for the scanner feature
type TelegramHandler struct {
	service *Service
}

// NewTelegramHandler creates a new Telegram handler for the scanner feature
func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes scanner-related Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	switch command {
	case "scan":
		return h.handleScan(bot, chatID, args)
	case "scanstatus":
		return h.handleStatus(bot, chatID)
	default:
		msg := tgbotapi.NewMessage(chatID, "❌ Unknown scanner command. Use /scan or /scanstatus")
		msg.ParseMode = tgbotapi.ModeMarkdown
		bot.Send(msg)
		return nil
	}
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"scan":       "Scan the library (use 'full' to parse every file)",
		"scanstatus": "Show scanner status and last scan report",
	}
}

// HandleCallback handles callback queries for this feature (scanner has no callbacks)
func (h *TelegramHandler) HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool {
	return false
}

func (h *TelegramHandler) handleScan(bot *tgbotapi.BotAPI, chatID int64, args string) error {
	options := ScanOptions{FullScan: strings.TrimSpace(args) == "full"}
	h.service.RequestImmediateScan(options)

	text := "🔄 *Scan queued*"
	if options.FullScan {
		text = "🔄 *Full scan queued*"
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

func (h *TelegramHandler) handleStatus(bot *tgbotapi.BotAPI, chatID int64) error {
	status := h.service.Status()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📡 *Scanner:* `%s`\n", status.State))
	if !status.NextScheduledScan.IsZero() {
		sb.WriteString(fmt.Sprintf("⏰ Next scan: `%s`\n", status.NextScheduledScan.Format(time.DateTime)))
	}
	if step := status.CurrentStepStats; step != nil {
		sb.WriteString(fmt.Sprintf("🔄 Step %d/%d `%s` (%d%%)\n", step.StepIndex+1, step.StepCount, step.CurrentStep, step.Progress()))
	}
	if status.LastScanAborted {
		sb.WriteString("⚠️ Last scan was aborted\n")
	}
	if status.LastCompleteScanStats != nil {
		sb.WriteString("\n")
		sb.WriteString(FormatScanReport(status.LastCompleteScanStats))
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// FormatScanReport renders stats as a Telegram Markdown message.
func FormatScanReport(stats *ScanStats) string {
	title := "✅ *Scan complete*"
	if stats.Aborted {
		title = "❌ *Scan aborted*"
	}
	return fmt.Sprintf("%s\n\n"+
		"📁 Files: %d (skipped %d)\n"+
		"➕ Added: %d\n"+
		"✏️ Updated: %d\n"+
		"🗑️ Removed: %d\n"+
		"👯 Duplicate groups: %d\n"+
		"⚠️ Errors: %d\n"+
		"⏱️ Duration: %s",
		title,
		stats.TotalFileCount, stats.Skips,
		stats.Additions,
		stats.Updates,
		stats.Deletions,
		len(stats.Duplicates),
		stats.ErrorsCount,
		stats.Duration().Round(time.Second),
	)
}
