package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkalot/internal/model"
)

func sampleFeed() string {
	start := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	user := &model.User{ID: 1, FirstName: "Dana", LastName: "Reyes"}
	return BuildFeed(user, []model.Reservation{{
		ID: 7, UserID: 1,
		StartTime: start.Unix(), EndTime: start.Add(time.Hour).Unix(),
		Status: model.StatusActive,
	}}, FeedOptions{Location: time.UTC, Now: start})
}

func TestFetchURL(t *testing.T) {
	body := sampleFeed()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed/secret.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := NewFetcher()
	got, err := f.Fetch(context.Background(), srv.URL+"/feed/secret.ics")
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	_, err = f.Fetch(context.Background(), srv.URL+"/feed/other.ics")
	assert.ErrorContains(t, err, "404")
	assert.NotContains(t, err.Error(), "other.ics", "the token is not echoed")
}

func TestFetchFileAndStdin(t *testing.T) {
	body := sampleFeed()
	path := filepath.Join(t.TempDir(), "feed.ics")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	f := &Fetcher{Stdin: strings.NewReader(body)}
	got, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	got, err = f.Fetch(context.Background(), "-")
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	_, err = f.Fetch(context.Background(), "")
	assert.Error(t, err)
	_, err = f.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.ics"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://parking.example.com/...(redacted)", redactURL("https://parking.example.com/feed/abc.ics?x=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
