package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"snapdiff/internal/api"
	"snapdiff/internal/capture"
	"snapdiff/internal/comparison"
	"snapdiff/internal/logging"
	"snapdiff/internal/store"
)

// degradedHeader is set on take-screenshot responses whose navigation did
// not complete before the screenshot.
const degradedHeader = "X-Snapdiff-Degraded"

// handleTakeScreenshot queues one capture and answers with the PNG. The
// caller's filePath is ignored; the image lands in a scratch directory that
// is removed once the response is written.
func (s *Server) handleTakeScreenshot(w http.ResponseWriter, r *http.Request) {
	if s.capturer == nil {
		writeError(w, http.StatusServiceUnavailable, "capture pool unavailable")
		return
	}
	var req capture.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	scratch, err := os.MkdirTemp(s.cfg.Paths.DataDir, "capture-*")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer func() { _ = os.RemoveAll(scratch) }()
	req.FilePath = filepath.Join(scratch, "screenshot.png")

	// A capture may take longer than the server's default deadlines.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	result, err := s.capturer.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, capture.ErrPoolClosed) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "take-screenshot failed", "capture_failed",
			logging.String(logging.FieldURL, req.URL),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the target URL is reachable from the daemon host"),
			logging.String(logging.FieldImpact, "caller receives an error instead of an image"),
		)
		s.writeServiceError(w, r, err)
		return
	}

	data, err := os.ReadFile(result.Path)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if result.Degraded {
		w.Header().Set(degradedHeader, "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleRunComparison(w http.ResponseWriter, r *http.Request) {
	var req api.RunComparisonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.runBatch(w, r, req.Pages, req.GenerateBaselines)
}

// handleCompareSite builds jobs from stored site data, optionally narrowed
// to some routes and devices, and starts them as one batch.
func (s *Server) handleCompareSite(w http.ResponseWriter, r *http.Request) {
	sitePath := siteParam(r)
	var req api.CompareSiteRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}

	ctx := r.Context()
	site, err := s.store.GetSite(ctx, sitePath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	devices, err := s.store.ListDevices(ctx, sitePath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	pages, err := s.store.GetPages(ctx, sitePath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	jobs := comparison.BuildJobs(site, filterDevices(devices, req.Devices), filterPages(pages, req.Routes))
	if len(jobs) == 0 {
		writeError(w, http.StatusBadRequest, "no pages and devices match")
		return
	}
	s.runBatch(w, r, jobs, req.GenerateBaselines)
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request, jobs []comparison.Job, generateBaselines bool) {
	if s.batch == nil {
		writeError(w, http.StatusServiceUnavailable, "comparison dispatcher unavailable")
		return
	}
	id, err := s.batch.RunBatch(r.Context(), jobs, generateBaselines)
	if err != nil {
		if errors.Is(err, comparison.ErrBatchClosed) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("comparison batch accepted",
		logging.String(logging.FieldBatchID, id),
		logging.Int("jobs", len(jobs)),
		logging.Bool("generate_baselines", generateBaselines),
	)
	writeText(w, http.StatusOK, comparison.StatusRunning)
}

func filterDevices(devices []*store.Device, names []string) []*store.Device {
	if len(names) == 0 {
		return devices
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[strings.TrimSpace(name)] = struct{}{}
	}
	out := make([]*store.Device, 0, len(devices))
	for _, device := range devices {
		if _, ok := wanted[device.Name]; ok {
			out = append(out, device)
		}
	}
	return out
}

func filterPages(pages []*store.Page, routes []string) []*store.Page {
	if len(routes) == 0 {
		return pages
	}
	wanted := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		wanted[store.NormalizeRoute(route)] = struct{}{}
	}
	out := make([]*store.Page, 0, len(pages))
	for _, page := range pages {
		if _, ok := wanted[page.Route]; ok {
			out = append(out, page)
		}
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, api.DaemonStatus{Running: true, PID: os.Getpid()})
		return
	}
	writeJSON(w, http.StatusOK, s.status(r.Context()))
}
