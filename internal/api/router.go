// Package api serves the forecasting service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"energy_forecast/internal/service"
)

const maxBodyBytes = 16 << 20

type Options struct {
	CORSOrigins []string
	// TrainRatePerMinute limits POST /train across all clients; 0 disables it.
	TrainRatePerMinute float64
	TrainBurst         int
	Gatherer           prometheus.Gatherer // nil serves the default registry
	WebSocket          http.Handler        // nil leaves /ws unrouted
	Logger             *zap.Logger
}

type Server struct {
	svc *service.Service
	log *zap.Logger
}

// NewRouter wires every route and wraps them with recovery, CORS and access
// logging.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{svc: svc, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ingest", s.ingest).Methods(http.MethodPost)
	r.Handle("/train", limit(newTrainLimiter(opts.TrainRatePerMinute, opts.TrainBurst), http.HandlerFunc(s.train))).
		Methods(http.MethodPost)
	r.HandleFunc("/forecast", s.forecast).Methods(http.MethodGet)
	r.HandleFunc("/carbon", s.carbon).Methods(http.MethodGet)
	r.HandleFunc("/history", s.history).Methods(http.MethodGet)
	r.HandleFunc("/models", s.models).Methods(http.MethodGet)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	if opts.WebSocket != nil {
		r.Handle("/ws", opts.WebSocket)
	}
	r.Use(accessLog(log))

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{log}))(cors(r))
}

func newTrainLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), max(burst, 1))
}

type recoveryLogger struct{ log *zap.Logger }

func (l recoveryLogger) Println(v ...any) {
	l.log.Error("handler panic", zap.Any("recovered", v))
}
