package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"
)

// Response wraps every reply: exactly one of Result and Error is set.
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respond(w, status, Response{
		Error: &APIError{
			Status:    status,
			Message:   msg,
			RequestID: middleware.GetReqID(r.Context()),
		},
	})
}

func writeResult(w http.ResponseWriter, result interface{}) {
	respond(w, http.StatusOK, Response{Result: result})
}

func respond(w http.ResponseWriter, status int, resp Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		zlog.Error().Err(err).Msg("response encoding failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
