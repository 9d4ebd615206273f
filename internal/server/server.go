package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/metrics"
	"github.com/TobiSchelling/drivereport/internal/pdf"
	"github.com/TobiSchelling/drivereport/internal/render"
	"github.com/TobiSchelling/drivereport/internal/report"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
	"github.com/TobiSchelling/drivereport/internal/tokens"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxUploadBytes bounds POST /datasets bodies.
const maxUploadBytes = 32 << 20

// Options wires the server's collaborators.
type Options struct {
	Catalog   *catalog.Document
	Store     tokens.Store
	PDF       pdf.Renderer // nil disables PDF routes
	Metrics   *metrics.Metrics
	TTL       time.Duration
	BaseURL   string
	DataPath  string    // default batch for / and /report
	AccessLog io.Writer // nil disables access logging
	Logger    *log.Logger
	Verbose   bool
	Workers   int
}

// Server is the HTTP server for uploading datasets and viewing reports.
type Server struct {
	builder   *report.Builder
	store     tokens.Store
	pdf       pdf.Renderer
	metrics   *metrics.Metrics
	render    *render.Renderer
	ttl       time.Duration
	baseURL   string
	dataPath  string
	accessLog io.Writer
	router    *mux.Router
	now       func() time.Time
}

// New creates a new Server.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server requires a dataset store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	builder, err := report.New(opts.Catalog, report.Options{
		Logger:  logger,
		Verbose: opts.Verbose,
		Workers: opts.Workers,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("creating report builder: %w", err)
	}
	rnd, err := render.New()
	if err != nil {
		return nil, err
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &Server{
		builder:   builder,
		store:     opts.Store,
		pdf:       opts.PDF,
		metrics:   opts.Metrics,
		render:    rnd,
		ttl:       ttl,
		baseURL:   opts.BaseURL,
		dataPath:  opts.DataPath,
		accessLog: opts.AccessLog,
		router:    mux.NewRouter(),
		now:       time.Now,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
}

func (s *Server) routes() {
	r := s.router
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(render.Static()))))
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)

	s.handle("index", "/", s.handleIndex, http.MethodGet)
	s.handle("report", "/report", s.handleDefaultReport, http.MethodGet)
	s.handle("upload", "/datasets", s.handleUpload, http.MethodPost)
	s.handle("dataset", "/datasets/{token}", s.handleDataset, http.MethodGet)
	s.handle("reports", "/datasets/{token}/reports", s.handleReports, http.MethodGet)
	s.handle("driver_report", "/datasets/{token}/reports/{driver}", s.handleDriverReport, http.MethodGet)
	s.handle("driver_pdf", "/datasets/{token}/reports/{driver}/pdf", s.handleDriverPDF, http.MethodGet)
}

func (s *Server) handle(name, path string, fn http.HandlerFunc, methods ...string) {
	s.router.Handle(path, s.metrics.WrapHandler(name, fn)).Methods(methods...)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok\n")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.loadDefault()
	if err != nil {
		log.Printf("Default data unavailable: %v", err)
	}
	s.renderPage(w, render.PageIndex, map[string]any{
		"Drivers": drivers,
		"TTL":     s.ttl.String(),
	})
}

// handleDefaultReport renders the configured batch, optionally for
// ?driver=<id>; the first driver is shown otherwise.
func (s *Server) handleDefaultReport(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.loadDefault()
	if err != nil {
		log.Printf("Error reading driver data: %v", err)
		http.Error(w, "Error reading driver data", http.StatusInternalServerError)
		return
	}
	if len(drivers) == 0 {
		http.Error(w, "No drivers in data", http.StatusNotFound)
		return
	}
	driverID := r.URL.Query().Get("driver")
	if driverID == "" {
		driverID = drivers[0].ID
	}
	rep, err := s.builder.BuildDriver(drivers, driverID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.renderPage(w, render.PageReport, map[string]any{"Report": rep})
}

type uploadResponse struct {
	Token     string    `json:"token"`
	Drivers   []string  `json:"drivers"`
	ExpiresAt time.Time `json:"expiresAt"`
	Duplicate bool      `json:"duplicate"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "Could not read upload", http.StatusRequestEntityTooLarge)
		return
	}
	now := s.now()

	if existing, err := s.store.ByFingerprint(r.Context(), tokens.Fingerprint(payload), now); err == nil {
		s.writeJSON(w, http.StatusOK, newUploadResponse(existing, true))
		return
	}

	ds, err := tokens.NewDataset(payload, now, s.ttl)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.Set(r.Context(), ds); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.DatasetStored()
	s.writeJSON(w, http.StatusCreated, newUploadResponse(ds, false))
}

func newUploadResponse(ds *tokens.Dataset, duplicate bool) uploadResponse {
	ids := make([]string, len(ds.Drivers))
	for i, d := range ds.Drivers {
		ids[i] = d.ID
	}
	return uploadResponse{Token: ds.Token, Drivers: ids, ExpiresAt: ds.ExpiresAt, Duplicate: duplicate}
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	s.renderPage(w, render.PageDataset, map[string]any{
		"Token":     ds.Token,
		"Size":      len(ds.Payload),
		"ExpiresAt": ds.ExpiresAt,
		"Drivers":   ds.Drivers,
	})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	reports, err := s.builder.BuildAll(r.Context(), ds.Drivers)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleDriverReport(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	driverID := mux.Vars(r)["driver"]
	rep, err := s.builder.BuildDriver(ds.Drivers, driverID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.renderPage(w, render.PageReport, map[string]any{
		"Report": rep,
		"PDFURL": reportPath(ds.Token, driverID) + "/pdf",
	})
}

// handleDriverPDF prints the HTML report route through the PDF renderer.
func (s *Server) handleDriverPDF(w http.ResponseWriter, r *http.Request) {
	if s.pdf == nil {
		http.Error(w, "PDF rendering is not configured", http.StatusServiceUnavailable)
		return
	}
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	driverID := mux.Vars(r)["driver"]
	if !hasDriver(ds.Drivers, driverID) {
		s.writeError(w, fmt.Errorf("%w: %s", report.ErrDriverNotFound, driverID))
		return
	}

	data, err := s.pdf.RenderURL(r.Context(), s.baseURL+reportPath(ds.Token, driverID))
	s.metrics.PDFRendered(err == nil)
	if err != nil {
		log.Printf("Error generating PDF: %v", err)
		http.Error(w, "Could not generate PDF.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%s.pdf"`, url.PathEscape(driverID)))
	w.Write(data)
}

func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*tokens.Dataset, bool) {
	ds, err := s.store.Get(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return ds, true
}

func (s *Server) loadDefault() ([]telemetry.Driver, error) {
	if s.dataPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.dataPath)
	if err != nil {
		return nil, err
	}
	return telemetry.Decode(data)
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.render.Render(w, name, data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tokens.ErrNotFound), errors.Is(err, report.ErrDriverNotFound):
		return http.StatusNotFound
	case errors.Is(err, tokens.ErrExpired):
		return http.StatusGone
	case errors.Is(err, telemetry.ErrEmptyPayload):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func reportPath(token, driverID string) string {
	return "/datasets/" + url.PathEscape(token) + "/reports/" + url.PathEscape(driverID)
}

func hasDriver(drivers []telemetry.Driver, id string) bool {
	for _, d := range drivers {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Serve starts the HTTP server on the given port and shuts it down when ctx
// is cancelled.
func Serve(ctx context.Context, srv *Server, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	hs := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", addr)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}
