package httpx

import (
	"errors"
	"net/http"

	"github.com/evekb/killfeed/internal/domain/job"
	apperrors "github.com/evekb/killfeed/internal/errors"
	"github.com/evekb/killfeed/internal/ports"
)

// JobHandlers provides manual trigger endpoints for the pipeline stages.
// Each trigger is non-blocking: a full queue is reported, never waited on.
type JobHandlers struct {
	Jobs ports.JobEnqueuer
}

// TriggerRefresh enqueues a token refresh pass.
// POST /jobs/refresh.
func (h *JobHandlers) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, job.Refresh())
}

// TriggerFetch enqueues a killmail listing pass.
// POST /jobs/fetch.
func (h *JobHandlers) TriggerFetch(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, job.FetchKillmails())
}

// TriggerResolve enqueues a killmail resolution pass.
// POST /jobs/resolve.
func (h *JobHandlers) TriggerResolve(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, job.ResolveKillmails())
}

func (h *JobHandlers) trigger(w http.ResponseWriter, j job.Job) {
	if err := h.Jobs.TryEnqueue(j); err != nil {
		if apperrors.IsQueueFull(err) {
			WriteError(w, ErrorParams{
				Code:    http.StatusServiceUnavailable,
				ErrCode: "queue_full",
				Err:     errors.New("job queue is full, retry shortly"),
			})
			return
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "enqueue_failed",
			Err:     err,
		})
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "kind": string(j.Kind)})
}
