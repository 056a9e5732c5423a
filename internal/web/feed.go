package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"parkalot/internal/ics"
	appLog "parkalot/internal/log"
	"parkalot/internal/model"
	"parkalot/internal/store"
)

// handleFeed serves the read-only iCalendar feed of the user owning the
// token in the URL. Reservations starting more than a month ago are left
// out.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSuffix(r.PathValue("token"), ".ics")
	if token == "" {
		http.NotFound(w, r)
		return
	}

	u, err := s.store.GetUserByFeedToken(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		appLog.Error("feed lookup failed", err, "request_id", requestIDFrom(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	entry, err := s.feedFor(r, u)
	if err != nil {
		appLog.Error("feed build failed", err, "user_id", u.ID, "request_id", requestIDFrom(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", entry.etag)
	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(int(s.feedTTL.Seconds())))
	if match := r.Header.Get("If-None-Match"); match != "" && match == entry.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="parkalot.ics"`)
	_, _ = w.Write([]byte(entry.body))
}

// feedFor returns the cached feed of u, rebuilding it once feedTTL has
// passed. The ETag covers the events only, so an unchanged calendar keeps
// its tag across rebuilds.
func (s *Server) feedFor(r *http.Request, u *model.User) (feedCacheEntry, error) {
	now := s.svc.Now()

	s.feedMu.RLock()
	entry, ok := s.feedCache[u.ID]
	s.feedMu.RUnlock()
	if ok && now.Sub(entry.updatedAt) < s.feedTTL {
		return entry, nil
	}

	list, err := s.svc.List(r.Context(), u.ID, now.AddDate(0, -1, 0), time.Time{})
	if err != nil {
		return feedCacheEntry{}, err
	}
	opts := ics.FeedOptions{Location: s.svc.Location(), BaseURL: baseURL(r), Now: now}
	entry = feedCacheEntry{
		body:      ics.BuildFeed(u, list, opts),
		etag:      feedETag(u, list, opts),
		updatedAt: now,
	}

	s.feedMu.Lock()
	s.feedCache[u.ID] = entry
	s.feedMu.Unlock()
	return entry, nil
}

func feedETag(u *model.User, list []model.Reservation, opts ics.FeedOptions) string {
	// DTSTAMP changes on every build; hash a feed stamped at a fixed time.
	opts.Now = time.Unix(0, 0)
	return `"` + strconv.FormatUint(xxhash.Sum64String(ics.BuildFeed(u, list, opts)), 16) + `"`
}

// forgetFeed drops the cached feed of userID after its reservations change.
func (s *Server) forgetFeed(userID int64) {
	s.feedMu.Lock()
	delete(s.feedCache, userID)
	s.feedMu.Unlock()
}
