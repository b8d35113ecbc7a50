package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/contre95/soulscan/src/features/scanning"
)

const (
	EventComplete = "complete"
	EventAborted  = "aborted"

	webhookTimeout = 30 * time.Second
)

// WebhookData is the data available to the command template.
type WebhookData struct {
	ID         string
	Status     string
	Duration   string
	Files      int
	Added      int
	Updated    int
	Removed    int
	Errors     int
	Duplicates int
}

// Webhook runs the configured shell command when a scan ends.
type Webhook struct {
	config  *config.Manager
	timeout time.Duration
}

func NewWebhook(cfg *config.Manager) *Webhook {
	return &Webhook{config: cfg, timeout: webhookTimeout}
}

// Subscribe connects the webhook to the scanner events. Commands run on
// their own goroutine.
func (w *Webhook) Subscribe(events *scanning.Events) {
	events.ScanComplete.Connect(func(stats scanning.ScanStats) {
		w.fire(EventComplete, stats)
	})
	events.ScanAborted.Connect(func(stats scanning.ScanStats) {
		w.fire(EventAborted, stats)
	})
}

func (w *Webhook) fire(event string, stats scanning.ScanStats) {
	command, ok, err := w.Render(event, stats)
	if err != nil {
		slog.Error("Webhook.fire: failed to render webhook command", "event", event, "error", err)
		return
	}
	if !ok {
		return
	}
	go func() {
		if err := w.Run(context.Background(), command); err != nil {
			slog.Error("Webhook.fire: webhook command failed", "event", event, "error", err)
		}
	}()
}

// Render builds the command for event. ok is false when webhooks are
// disabled or the event is filtered out.
func (w *Webhook) Render(event string, stats scanning.ScanStats) (command string, ok bool, err error) {
	cfg := w.config.Get().Webhook
	if !cfg.Enabled || strings.TrimSpace(cfg.Command) == "" {
		return "", false, nil
	}
	if len(cfg.Events) > 0 && !slices.Contains(cfg.Events, event) {
		return "", false, nil
	}

	tmpl, err := template.New("webhook").Parse(cfg.Command)
	if err != nil {
		return "", false, fmt.Errorf("failed to parse webhook template: %w", err)
	}

	data := WebhookData{
		ID:         stats.ID,
		Status:     event,
		Duration:   stats.Duration().Round(time.Second).String(),
		Files:      stats.TotalFileCount,
		Added:      stats.Additions,
		Updated:    stats.Updates,
		Removed:    stats.Deletions,
		Errors:     stats.ErrorsCount,
		Duplicates: len(stats.Duplicates),
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", false, fmt.Errorf("failed to execute webhook template: %w", err)
	}
	return sb.String(), true, nil
}

// Run executes command through the shell and kills it after the timeout.
func (w *Webhook) Run(ctx context.Context, command string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Env = os.Environ()
	cmd.WaitDelay = time.Second
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run webhook command: %w (output: %s)", err, strings.TrimSpace(output.String()))
	}
	slog.Debug("Webhook.Run: webhook executed", "output", strings.TrimSpace(output.String()))
	return nil
}
