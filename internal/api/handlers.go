package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Fatnaoui/crawler-project/internal/storage"
	"github.com/Fatnaoui/crawler-project/pkg/logging"
)

// Version is reported by the health endpoint
const Version = "0.3.0"

const maxListLimit = 1000

// Handlers serves read-only views of the run ledger
type Handlers struct {
	ledger storage.Ledger
	logger zerolog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(ledger storage.Ledger) *Handlers {
	return &Handlers{
		ledger: ledger,
		logger: logging.GetLogger("api"),
	}
}

// Health returns the service health status
func (h *Handlers) Health(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":    "healthy",
		"service":   "darija-curate",
		"version":   Version,
		"timestamp": time.Now().UTC(),
	}
	if err := h.ledger.Health(c.UserContext()); err != nil {
		status["status"] = "unhealthy"
		status["error"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}

// ListRuns returns the most recent runs
func (h *Handlers) ListRuns(c *fiber.Ctx) error {
	limit, err := parseLimit(c, 50)
	if err != nil {
		return err
	}

	runs, err := h.ledger.ListRuns(c.UserContext(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list runs")
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns one run
func (h *Handlers) GetRun(c *fiber.Ctx) error {
	run, err := h.loadRun(c)
	if err != nil {
		return err
	}
	return c.JSON(run)
}

// StageView groups the counters of one stage
type StageView struct {
	Name     string           `json:"name"`
	Index    int              `json:"index"`
	Counters map[string]int64 `json:"counters"`
}

// GetRunStats returns per-stage counters and rejection counts of a run
func (h *Handlers) GetRunStats(c *fiber.Ctx) error {
	run, err := h.loadRun(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	rows, err := h.ledger.StageStats(ctx, run.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to load stage stats")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load stage stats")
	}
	counts, err := h.ledger.RejectionCounts(ctx, run.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to count rejections")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to count rejections")
	}

	// Rows arrive ordered by stage index
	stages := []StageView{}
	for _, row := range rows {
		if n := len(stages); n == 0 || stages[n-1].Name != row.Stage {
			stages = append(stages, StageView{Name: row.Stage, Index: row.Index, Counters: map[string]int64{}})
		}
		stages[len(stages)-1].Counters[row.Counter] = row.Value
	}

	keepRate := 0.0
	if run.DocumentsRead > 0 {
		keepRate = float64(run.DocumentsKept) / float64(run.DocumentsRead) * 100.0
	}
	return c.JSON(fiber.Map{
		"run":        run,
		"keep_rate":  keepRate,
		"stages":     stages,
		"rejections": counts,
	})
}

// ListRejections returns rejections of a run, filtered by ?stage= and ?reason=
func (h *Handlers) ListRejections(c *fiber.Ctx) error {
	run, err := h.loadRun(c)
	if err != nil {
		return err
	}
	limit, err := parseLimit(c, storage.DefaultRejectionLimit)
	if err != nil {
		return err
	}

	rejections, err := h.ledger.ListRejections(c.UserContext(), storage.RejectionQuery{
		RunID:  run.ID,
		Stage:  c.Query("stage"),
		Reason: c.Query("reason"),
		Limit:  limit,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to list rejections")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list rejections")
	}
	if rejections == nil {
		rejections = []storage.Rejection{}
	}
	return c.JSON(fiber.Map{
		"run_id":     run.ID,
		"stage":      c.Query("stage"),
		"rejections": rejections,
		"count":      len(rejections),
	})
}

func (h *Handlers) loadRun(c *fiber.Ctx) (*storage.Run, error) {
	id := c.Params("id")
	run, err := h.ledger.GetRun(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "run not found: "+id)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load run")
	}
	return run, nil
}

func parseLimit(c *fiber.Ctx, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
