package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkalot/internal/ics"
	"parkalot/internal/model"
)

func runFeed(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	fetcher := ics.NewFetcher()
	fetcher.Stdin = strings.NewReader(stdin)
	cmd := newFeedCmd(fetcher)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFeedCheck(t *testing.T) {
	start := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	user := &model.User{ID: 1, FirstName: "Dana", LastName: "Reyes"}
	body := ics.BuildFeed(user, []model.Reservation{
		{ID: 7, UserID: 1, StartTime: start.Unix(), EndTime: start.Add(time.Hour).Unix(), Status: model.StatusActive},
		{ID: 9, UserID: 1, StartTime: start.Add(24 * time.Hour).Unix(), EndTime: start.Add(25 * time.Hour).Unix(), Status: model.StatusCancelled},
	}, ics.FeedOptions{Location: time.UTC, Now: start})

	path := filepath.Join(t.TempDir(), "feed.ics")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := runFeed(t, "", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-06-01T13:00:00Z")
	assert.Contains(t, out, "CONFIRMED")
	assert.Contains(t, out, "CANCELLED")
	assert.Contains(t, out, "2 events")

	out, err = runFeed(t, body, "check", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "2 events")
}

func TestFeedCheckRejectsGarbage(t *testing.T) {
	_, err := runFeed(t, "", "check", "-")
	assert.Error(t, err)

	_, err = runFeed(t, "", "check")
	assert.Error(t, err, "a source is required")
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "complete", "user", "feed"})
}
