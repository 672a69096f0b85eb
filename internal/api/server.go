package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/db"
	"github.com/banshee-data/speedtrap/internal/httputil"
	"github.com/banshee-data/speedtrap/internal/monitoring"
	"github.com/banshee-data/speedtrap/internal/pipeline"
	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Pipeline is the view of the running pipeline the API serves.
// *pipeline.Pipeline satisfies it.
type Pipeline interface {
	Stats() pipeline.Stats
	Limits() radar.Limits
	Pending() []uint32
	Feed() *bus.Topic[string]
}

type Server struct {
	p        Pipeline
	gatherer prometheus.Gatherer
	site     *db.Site
	db       *db.DB
}

// NewServer creates the API server. A nil gatherer serves the default
// prometheus registry.
func NewServer(p Pipeline, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{p: p, gatherer: gatherer}
}

// SetDB enables the /api/sites routes backed by d.
func (s *Server) SetDB(d *db.DB) {
	s.db = d
}

// SetSite records the site whose limits are in effect, for /api/config.
func (s *Server) SetSite(site *db.Site) {
	s.site = site
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/speeds", s.showSpeeds)
	if s.db != nil {
		mux.HandleFunc("/api/sites", s.handleSites)
		mux.HandleFunc(sitesPrefix, s.handleSites)
	}
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.p.Stats())
}

// ConfigResponse is the body of GET /api/config.
type ConfigResponse struct {
	Limits radar.Limits `json:"limits"`
	Site   *db.Site     `json:"site,omitempty"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ConfigResponse{Limits: s.p.Limits(), Site: s.site})
}

// SpeedSummary is the body of GET /api/speeds: percentiles over the
// display's recent speed window, in the requested units.
type SpeedSummary struct {
	Units   string  `json:"units"`
	Samples int     `json:"samples"`
	P50     float64 `json:"p50"`
	P85     float64 `json:"p85"`
	P98     float64 `json:"p98"`
	Max     float64 `json:"max"`
}

func (s *Server) showSpeeds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	u := r.URL.Query().Get("units")
	if u == "" {
		u = units.KPH
	}
	if !units.IsValid(u) {
		httputil.BadRequest(w, fmt.Sprintf("invalid units %q; must be one of %s", u, units.ValidUnitsString()))
		return
	}
	t := s.p.Stats().Display
	httputil.WriteJSONOK(w, SpeedSummary{
		Units:   u,
		Samples: t.WindowSize,
		P50:     units.FromKPH(t.P50Speed, u),
		P85:     units.FromKPH(t.P85Speed, u),
		P98:     units.FromKPH(t.P98Speed, u),
		Max:     units.FromKPH(float64(t.MaxSpeed), u),
	})
}
