package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/application/services"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// CheckpointReader reads the persisted pipeline checkpoint
type CheckpointReader interface {
	Get(ctx context.Context) (*entities.ServiceMeta, error)
}

// PipelineStats exposes in-process dispersal counters
type PipelineStats interface {
	GetMetrics() services.IndexerMetrics
}

// StatusHandler reports ingestion progress
type StatusHandler struct {
	checkpoint CheckpointReader
	stats      PipelineStats
	logger     *zap.Logger
	now        func() time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(checkpoint CheckpointReader, stats PipelineStats, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		checkpoint: checkpoint,
		stats:      stats,
		logger:     logger,
		now:        time.Now,
	}
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	GenesisApplied     bool    `json:"genesis_applied"`
	LastSequence       int64   `json:"last_sequence"`
	LastBlockTime      *string `json:"last_block_time"`
	LagSeconds         *int64  `json:"lag_seconds"`
	BlocksDispersed    int64   `json:"blocks_dispersed"`
	BlocksSkipped      int64   `json:"blocks_skipped"`
	DispersalLatencyMs int64   `json:"dispersal_latency_ms"`
	GenesisImported    bool    `json:"genesis_imported_this_run"`
}

// Status handles GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	meta, err := h.checkpoint.Get(ctx)
	if err != nil {
		h.logger.Error("Failed to read checkpoint", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to read checkpoint")
		return
	}
	if meta == nil {
		h.respondError(w, http.StatusServiceUnavailable, "checkpoint not created yet")
		return
	}

	stats := h.stats.GetMetrics()
	response := StatusResponse{
		GenesisApplied:     meta.IsGenesisApplied,
		LastSequence:       meta.LastSequence,
		BlocksDispersed:    stats.BlocksDispersed,
		BlocksSkipped:      stats.BlocksSkipped,
		DispersalLatencyMs: stats.DispersalLatency.Milliseconds(),
		GenesisImported:    stats.GenesisAppliedNow,
	}

	if meta.LastBlockTime != nil && !meta.LastBlockTime.IsZero() {
		formatted := meta.LastBlockTime.UTC().Format(time.RFC3339)
		lag := int64(h.now().Sub(*meta.LastBlockTime).Seconds())
		if lag < 0 {
			lag = 0
		}
		response.LastBlockTime = &formatted
		response.LagSeconds = &lag
	}

	h.respondJSON(w, http.StatusOK, response)
}

func (h *StatusHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *StatusHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
