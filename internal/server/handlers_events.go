package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"snapdiff/internal/api"
	"snapdiff/internal/notify"
)

// handleEvents streams a site's notifications. Requests carrying since or
// follow get a JSON long-poll answer; everything else gets server-sent
// events, resuming after Last-Event-ID when the client provides one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	sitePath := siteParam(r)
	if _, err := s.store.GetSite(r.Context(), sitePath); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	query := r.URL.Query()
	if query.Has("since") || query.Has("follow") {
		s.longPoll(w, r, sitePath)
		return
	}
	s.stream(w, r, sitePath)
}

func (s *Server) longPoll(w http.ResponseWriter, r *http.Request, sitePath string) {
	query := r.URL.Query()
	since, err := parseSequence(query.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid since parameter")
		return
	}
	follow := false
	if raw := strings.TrimSpace(query.Get("follow")); raw != "" {
		if follow, err = strconv.ParseBool(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid follow parameter")
			return
		}
	}

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.longPollWait)
		defer cancel()
	}
	events, next, err := s.events.Fetch(ctx, sitePath, since, follow)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		// The client went away; nobody is left to answer.
		return
	}
	if events == nil {
		events = []notify.Event{}
	}
	writeJSON(w, http.StatusOK, api.EventsResponse{Events: events, Next: next})
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, sitePath string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	since, err := parseSequence(r.Header.Get("Last-Event-ID"))
	if err != nil {
		since = 0
	}
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		events, next, err := s.events.Fetch(ctx, sitePath, since, true)
		if err != nil {
			return
		}
		for _, evt := range events {
			if err := writeSSE(w, evt); err != nil {
				return
			}
		}
		flusher.Flush()
		since = next
	}
}

func writeSSE(w http.ResponseWriter, evt notify.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Name, data)
	return err
}

func parseSequence(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
