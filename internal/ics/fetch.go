package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	appLog "parkalot/internal/log"
)

// maxFeedBytes bounds a feed read from any source.
const maxFeedBytes = 8 << 20

// Fetcher loads feed payloads for checking. Sources are http(s) URLs,
// local paths, or "-" for Stdin.
type Fetcher struct {
	Client *http.Client
	Stdin  io.Reader
}

// NewFetcher returns a Fetcher with a 15 second HTTP timeout reading "-"
// from os.Stdin.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client: &http.Client{Timeout: 15 * time.Second},
		Stdin:  os.Stdin,
	}
}

// Fetch returns the raw payload of src.
func (f *Fetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case src == "":
		return nil, errors.New("feed source is empty")
	case src == "-":
		return readLimited(f.Stdin)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return f.fetchURL(ctx, src)
	}

	file, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readLimited(file)
}

func (f *Fetcher) fetchURL(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", redactURL(src))
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", redactURL(src), resp.Status)
	}
	body, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	appLog.Info("ics fetch success", "url", redactURL(src), "bytes", len(body))
	return body, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, errors.New("no input")
	}
	body, err := io.ReadAll(io.LimitReader(r, maxFeedBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("feed larger than %d bytes", maxFeedBytes)
	}
	return body, nil
}

// redactURL keeps scheme and host only; feed paths carry the owner's token.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
