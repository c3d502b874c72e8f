package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/buildinfo"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/mask"
	"github.com/matzehuels/geomap/pkg/observability"
	"github.com/matzehuels/geomap/pkg/pipeline"
)

// defaultMaxEdge caps the raster edge a single HTTP render may request.
const defaultMaxEdge = 4096

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var flags renderFlags
	var addr string
	var maxEdge int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sector grids and renders over HTTP",
		Long: `Serve exposes:

  GET /healthz                       liveness and version
  GET /stats                         run, fetch and cache counters
  GET /sectors?bbox=...&limit=1000   sector grid as JSON
  GET /render?bbox=...&masks=1       PNG raster of the box

Renders use the source configured by flags, typically a local .osm.pbf.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := flags.baseOptions(cmd)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(flags.cache)
			if err != nil {
				return err
			}
			defer runner.Close()

			m := newMetrics(c.Logger)
			m.register()
			defer observability.Reset()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newServer(runner, base, maxEdge, m, c.Logger).routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				_ = srv.Close()
			}()

			printSuccess("Listening on %s", StyleValue.Render(addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return cmd.Context().Err()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&maxEdge, "max-edge", defaultMaxEdge, "largest raster edge in pixels per request")
	return cmd
}

// server handles the HTTP API.
type server struct {
	runner  *pipeline.Runner
	base    pipeline.Options
	maxEdge int
	metrics *metrics
	logger  *log.Logger
}

func newServer(runner *pipeline.Runner, base pipeline.Options, maxEdge int, m *metrics, logger *log.Logger) *server {
	if maxEdge <= 0 {
		maxEdge = defaultMaxEdge
	}
	if m == nil {
		m = newMetrics(logger)
	}
	return &server{runner: runner, base: base, maxEdge: maxEdge, metrics: m, logger: logger}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/sectors", s.handleSectors)
	r.Get("/render", s.handleRender)
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.snapshot())
}

type sectorsResponse struct {
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	Sectors []geo.Sector `json:"sectors"`
}

func (s *server) handleSectors(w http.ResponseWriter, r *http.Request) {
	box, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit := pipeline.DefaultPixelLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "limit"))
			return
		}
	}
	sectors, err := geo.Sectorize(box, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	width, height := geo.Size(box)
	writeJSON(w, http.StatusOK, sectorsResponse{Width: width, Height: height, Sectors: sectors})
}

func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	box, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		writeError(w, err)
		return
	}
	if width, height := geo.Size(box); width > s.maxEdge || height > s.maxEdge {
		writeError(w, errors.New(errors.ErrCodeInvalidBounds,
			"raster %dx%d exceeds the %d px limit", width, height, s.maxEdge))
		return
	}

	opts := s.base
	opts.Box = box
	opts.NoRaster = true
	opts.NoMasks = r.URL.Query().Get("masks") != "1"
	opts.Store = nil
	if !opts.NoMasks {
		opts.Store = mask.NewMemoryStore()
	}

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := result.Canvas.EncodePNG(&buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Geomap-Run", result.RunID)
	w.Header().Set("X-Geomap-Masks", strconv.Itoa(result.Stats.Masks))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}

// httpStatus maps an error code to an HTTP status.
func httpStatus(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidBounds, errors.ErrCodeInvalidSector,
		errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidCategory, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
