package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/metasim/ogcapi/internal/ogc"
)

// Exception type URIs from OGC API - Processes.
const (
	excNoSuchProcess    = "http://www.opengis.net/def/exceptions/ogcapi-processes-1/1.0/no-such-process"
	excNoSuchJob        = "http://www.opengis.net/def/exceptions/ogcapi-processes-1/1.0/no-such-job"
	excResultsNotReady  = "http://www.opengis.net/def/exceptions/ogcapi-processes-1/1.0/result-not-ready"
	excInvalidParameter = "http://www.opengis.net/def/exceptions/ogcapi-processes-1/1.0/invalid-parameter"
	excServerError      = "about:blank"
)

// exception is the error payload returned by every endpoint.
type exception struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", ogc.MediaTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeException(w http.ResponseWriter, status int, typ, detail string) {
	writeJSON(w, status, exception{Type: typ, Status: status, Detail: detail})
}

// writeStorageError reports an unexpected store failure as retryable.
func (s *Server) writeStorageError(w http.ResponseWriter, err error) {
	s.logger.Error("storage operation failed", zap.Error(err))
	writeException(w, http.StatusServiceUnavailable, excServerError, "storage temporarily unavailable")
}
