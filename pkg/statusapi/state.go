package statusapi

import (
	"net/http"

	"github.com/lodthe/container-from-sqldump/internal/provisionrun"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

type stateHandler struct {
	source ReportSource
	runs   RunStorage
}

func newStateHandler(source ReportSource, runs RunStorage) *stateHandler {
	return &stateHandler{
		source: source,
		runs:   runs,
	}
}

func (h *stateHandler) handle(r chi.Router) {
	r.Get("/state", h.getState)
	r.Get("/runs/{id}", h.getRun)
}

type GetStateOutput struct {
	Report      interface{} `json:"report"`
	SiteURL     string      `json:"site_url,omitempty"`
	ConnectHint string      `json:"connect_hint"`
	AttachHint  string      `json:"attach_hint"`
}

func (h *stateHandler) getState(w http.ResponseWriter, _ *http.Request) {
	report := h.source.Report()

	writeResult(w, GetStateOutput{
		Report:      report,
		SiteURL:     report.SiteURL,
		ConnectHint: report.ConnectHint(),
		AttachHint:  report.AttachHint(),
	})
}

func (h *stateHandler) getRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, r, http.StatusNotImplemented, "run history is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missed id")
		return
	}

	run, err := h.runs.Get(r.Context(), id)
	if errors.Is(err, provisionrun.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zlog.Error().Err(err).Str("id", id).Msg("failed to find a run")
		writeError(w, r, http.StatusInternalServerError, "internal error")

		return
	}

	writeResult(w, run)
}
