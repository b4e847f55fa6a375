// Package http provides HTTP transport for the sync service
package http

import (
	stdhttp "net/http"
	"time"

	"ordercast/internal/modkit/httpkit"
	perr "ordercast/internal/platform/errors"
	"ordercast/internal/services/sync/domain"
)

// DocumentGetInput selects one customer document
type DocumentGetInput struct {
	CustomerID int64 `json:"customer_id"`
}

// DocumentListInput pages recently updated documents; Since/Until narrow
// to a half-open window when both are present
type DocumentListInput struct {
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`
	Limit int        `json:"limit,omitempty"`
}

// Register mounts sync endpoints on the given router.
// POST with JSON bodies keeps the query shapes composable
func Register(r httpkit.Router, orch domain.OrchestratorPort, reader domain.ReaderPort) {
	h := &handlers{orch: orch, reader: reader}

	httpkit.PostJSON[domain.SyncInput](r, "/run", h.run)
	httpkit.Get(r, "/state", h.state)
	httpkit.PostJSON[DocumentGetInput](r, "/documents/get", h.document)
	httpkit.PostJSON[DocumentListInput](r, "/documents/list", h.documents)
}

type handlers struct {
	orch   domain.OrchestratorPort
	reader domain.ReaderPort
}

func (h *handlers) run(r *stdhttp.Request, in domain.SyncInput) (any, error) {
	sum, err := h.orch.Run(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (h *handlers) state(r *stdhttp.Request) (any, error) {
	return map[string]string{"state": h.orch.State().String()}, nil
}

func (h *handlers) document(r *stdhttp.Request, in DocumentGetInput) (any, error) {
	if in.CustomerID <= 0 {
		return nil, perr.InvalidArgf("customer_id must be positive")
	}
	return h.reader.GetByCustomer(r.Context(), in.CustomerID)
}

func (h *handlers) documents(r *stdhttp.Request, in DocumentListInput) (any, error) {
	if in.Since != nil && in.Until != nil {
		return h.reader.ListUpdatedBetween(r.Context(), *in.Since, *in.Until, in.Limit)
	}
	if in.Since != nil || in.Until != nil {
		return nil, perr.InvalidArgf("since and until must be provided together")
	}
	return h.reader.ListRecent(r.Context(), in.Limit)
}
