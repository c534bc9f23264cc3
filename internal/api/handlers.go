package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"energy_forecast/internal/ingest"
	"energy_forecast/internal/predictor"
	"energy_forecast/internal/service"
)

var errBadParam = errors.New("invalid query parameter")

const (
	defaultHours   = 24
	defaultMinRows = predictor.DefaultMinRows
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Health(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

type ingestResponse struct {
	Inserted   int    `json:"inserted"`
	BuildingID string `json:"building_id"`
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	buildingID, ms, err := ingest.DecodePayload(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.svc.Ingest(r.Context(), buildingID, ms)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Inserted: n, BuildingID: buildingID})
}

type trainResponse struct {
	BuildingID     string    `json:"building_id"`
	Version        string    `json:"version"`
	Algorithm      string    `json:"algorithm"`
	MAE            float64   `json:"mae"`
	ResidualStd    float64   `json:"resid_std"`
	Rows           int       `json:"rows"`
	TrainRows      int       `json:"train_rows"`
	ValidationRows int       `json:"validation_rows"`
	TrainedAt      time.Time `json:"trained_at"`
}

func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	buildingID, err := requiredParam(r, "building_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	minRows, err := intParam(r, "min_rows", defaultMinRows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if minRows < predictor.MinRowsFloor {
		s.fail(w, r, fmt.Errorf("%w: min_rows must be ≥%d, got %d", errBadParam, predictor.MinRowsFloor, minRows))
		return
	}
	a, err := s.svc.Train(r.Context(), buildingID, minRows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trainResponse{
		BuildingID:     a.BuildingID,
		Version:        a.Version,
		Algorithm:      a.Algorithm,
		MAE:            a.Metrics.MAE,
		ResidualStd:    a.ResidualStd,
		Rows:           a.Metrics.Rows,
		TrainRows:      a.Metrics.TrainRows,
		ValidationRows: a.Metrics.ValidationRows,
		TrainedAt:      a.TrainedAt,
	})
}

// forecast and carbon leave horizon bounds to the service so the error
// carries the configured maximum.
func (s *Server) forecast(w http.ResponseWriter, r *http.Request) {
	buildingID, err := requiredParam(r, "building_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	hours, err := intParam(r, "hours", defaultHours)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Forecast(r.Context(), buildingID, hours)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) carbon(w http.ResponseWriter, r *http.Request) {
	buildingID, err := requiredParam(r, "building_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	hours, err := intParam(r, "hours", defaultHours)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var factor *float64
	if raw := r.URL.Query().Get("factor_g_per_kwh"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: factor_g_per_kwh %q", errBadParam, raw))
			return
		}
		factor = &f
	}
	res, err := s.svc.Carbon(r.Context(), buildingID, hours, factor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type historyPoint struct {
	TS          time.Time `json:"ts"`
	Energy      float64   `json:"energy"`
	Temperature *float64  `json:"temperature"`
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	buildingID, err := requiredParam(r, "building_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	hours, err := intParam(r, "hours", service.DefaultHistoryHours)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ms, err := s.svc.History(r.Context(), buildingID, hours)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]historyPoint, len(ms))
	for i, m := range ms {
		out[i] = historyPoint{TS: m.Timestamp, Energy: m.Energy, Temperature: m.Temperature}
	}
	writeJSON(w, http.StatusOK, out)
}

type modelInfo struct {
	BuildingID  string            `json:"building_id"`
	Version     string            `json:"version"`
	Algorithm   string            `json:"algorithm"`
	ResidualStd float64           `json:"resid_std"`
	Metrics     predictor.Metrics `json:"metrics"`
	TrainedAt   time.Time         `json:"trained_at"`
}

func (s *Server) models(w http.ResponseWriter, r *http.Request) {
	arts := s.svc.Models()
	out := make([]modelInfo, len(arts))
	for i, a := range arts {
		out[i] = modelInfo{
			BuildingID:  a.BuildingID,
			Version:     a.Version,
			Algorithm:   a.Algorithm,
			ResidualStd: a.ResidualStd,
			Metrics:     a.Metrics,
			TrainedAt:   a.TrainedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func requiredParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", errBadParam, name)
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", errBadParam, name, raw)
	}
	return v, nil
}
