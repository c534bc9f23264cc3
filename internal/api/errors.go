package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"energy_forecast/internal/carbon"
	"energy_forecast/internal/ingest"
	"energy_forecast/internal/model"
	"energy_forecast/internal/service"
)

type errorBody struct {
	Detail string `json:"detail"`
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrArtifactNotFound), errors.Is(err, service.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTrainingInProgress), errors.Is(err, model.ErrFeatureSchemaMismatch),
		errors.Is(err, model.ErrBuildingMismatch):
		return http.StatusConflict
	case errors.Is(err, model.ErrHistoryGap), errors.Is(err, model.ErrUnorderedHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrInvalidPayload),
		errors.Is(err, model.ErrInvalidMeasurement),
		errors.Is(err, model.ErrInvalidHorizon),
		errors.Is(err, model.ErrInsufficientData),
		errors.Is(err, model.ErrInsufficientHistory),
		errors.Is(err, carbon.ErrInvalidFactor),
		errors.Is(err, service.ErrInvalidHours),
		errors.Is(err, errBadParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal server error"
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Detail: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
