package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"snapdiff/internal/api"
)

func siteParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "site"))
}

func (s *Server) siteDetail(ctx context.Context, sitePath string) (api.SiteDetail, error) {
	site, err := s.store.GetSite(ctx, sitePath)
	if err != nil {
		return api.SiteDetail{}, err
	}
	devices, err := s.store.ListDevices(ctx, sitePath)
	if err != nil {
		return api.SiteDetail{}, err
	}
	pages, err := s.store.GetPages(ctx, sitePath)
	if err != nil {
		return api.SiteDetail{}, err
	}
	return api.SiteDetail{
		Site:    api.FromSite(site, s.cfg.Comparison.DefaultFailingThreshold),
		Devices: api.FromDevices(devices),
		Pages:   pages,
	}, nil
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	var req api.GetSiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(req.SitePath) == "" {
		writeError(w, http.StatusBadRequest, "sitePath is required")
		return
	}
	detail, err := s.siteDetail(r.Context(), strings.TrimSpace(req.SitePath))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SiteListResponse{Sites: api.FromSites(sites, s.cfg.Comparison.DefaultFailingThreshold)})
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	site, err := s.store.CreateSite(r.Context(), req.ToStoreSite())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromSite(site, s.cfg.Comparison.DefaultFailingThreshold))
}

func (s *Server) handleSiteDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.siteDetail(r.Context(), siteParam(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSite(r.Context(), siteParam(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req api.ThresholdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sitePath := siteParam(r)
	ctx := r.Context()
	if err := s.store.SetFailingThreshold(ctx, sitePath, req.FailingThreshold); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	site, err := s.store.GetSite(ctx, sitePath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSite(site, s.cfg.Comparison.DefaultFailingThreshold))
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	sitePath := siteParam(r)
	ctx := r.Context()
	if _, err := s.store.GetSite(ctx, sitePath); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	pages, err := s.store.GetPages(ctx, sitePath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request) {
	var req api.AddPageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	page, err := s.store.AddPage(r.Context(), siteParam(r), req.Route)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "pageID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid page id")
		return
	}
	if err := s.store.DeletePage(r.Context(), siteParam(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	sitePath := siteParam(r)
	ctx := r.Context()
	if _, err := s.store.GetSite(ctx, sitePath); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	devices, err := s.store.ListDevices(ctx, sitePath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromDevices(devices))
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req api.AddDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	device, err := s.store.AddDevice(r.Context(), req.ToStoreDevice(siteParam(r)))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromDevice(device))
}

