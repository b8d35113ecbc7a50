package scanning

import (
	"log/slog"
	"time"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/gofiber/fiber/v2"
)

// Handler is the HTTP handler of the scanner.
type Handler struct {
	service       *Service
	configManager *config.Manager
}

// NewHandler creates a new scanner handler.
func NewHandler(service *Service, configManager *config.Manager) *Handler {
	return &Handler{service: service, configManager: configManager}
}

// StatusResponse is the summary returned by the status endpoint. Error
// details are only served by the report endpoint.
type StatusResponse struct {
	State             State          `json:"state"`
	NextScheduledScan *time.Time     `json:"next_scheduled_scan,omitempty"`
	CurrentStep       *StepResponse  `json:"current_step,omitempty"`
	LastScan          *StatsResponse `json:"last_scan,omitempty"`
	LastScanAborted   bool           `json:"last_scan_aborted"`
}

type StepResponse struct {
	ScanStepStats
	Progress int `json:"progress"`
}

type StatsResponse struct {
	ID             string    `json:"id"`
	StartTime      time.Time `json:"start_time"`
	StopTime       time.Time `json:"stop_time"`
	TotalFileCount int       `json:"total_file_count"`
	Scans          int       `json:"scans"`
	Skips          int       `json:"skips"`
	Additions      int       `json:"additions"`
	Updates        int       `json:"updates"`
	Deletions      int       `json:"deletions"`
	Failures       int       `json:"failures"`
	Duplicates     int       `json:"duplicates"`
	ErrorsCount    int       `json:"errors_count"`
}

func newStatsResponse(stats *ScanStats) *StatsResponse {
	return &StatsResponse{
		ID:             stats.ID,
		StartTime:      stats.StartTime,
		StopTime:       stats.StopTime,
		TotalFileCount: stats.TotalFileCount,
		Scans:          stats.Scans,
		Skips:          stats.Skips,
		Additions:      stats.Additions,
		Updates:        stats.Updates,
		Deletions:      stats.Deletions,
		Failures:       stats.Failures,
		Duplicates:     len(stats.Duplicates),
		ErrorsCount:    stats.ErrorsCount,
	}
}

// HandleStatus returns the scheduling state and progress of the scanner.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	status := h.service.Status()
	response := StatusResponse{
		State:           status.State,
		LastScanAborted: status.LastScanAborted,
	}
	if !status.NextScheduledScan.IsZero() {
		response.NextScheduledScan = &status.NextScheduledScan
	}
	if status.CurrentStepStats != nil {
		response.CurrentStep = &StepResponse{ScanStepStats: *status.CurrentStepStats, Progress: status.CurrentStepStats.Progress()}
	}
	if status.LastCompleteScanStats != nil {
		response.LastScan = newStatsResponse(status.LastCompleteScanStats)
	}
	return c.JSON(response)
}

// HandleReport returns the full stats of the last complete scan.
func (h *Handler) HandleReport(c *fiber.Ctx) error {
	status := h.service.Status()
	if status.LastCompleteScanStats == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no scan completed yet"})
	}
	return c.JSON(status.LastCompleteScanStats)
}

// HandleScan queues an immediate scan.
func (h *Handler) HandleScan(c *fiber.Ctx) error {
	options := ScanOptions{
		FullScan:      c.QueryBool("full", false),
		ForceOptimize: c.QueryBool("optimize", false),
		Compact:       c.QueryBool("compact", false),
	}
	h.service.RequestImmediateScan(options)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true, "options": options})
}

// HandleReload reloads the configuration file and the scanner settings.
func (h *Handler) HandleReload(c *fiber.Ctx) error {
	if err := h.configManager.Reload(); err != nil {
		slog.Error("HandleReload: failed to reload configuration", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	h.service.RequestReload()
	return c.JSON(fiber.Map{"reloaded": true})
}
