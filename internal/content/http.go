package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/tacogips/modelres/internal/debug"
)

// RemoteHandle addresses content behind an http(s) URL. The body is
// downloaded once into temporary storage; later opens read the local copy.
type RemoteHandle struct {
	url       string
	client    *http.Client
	temp      *TempStore
	userAgent string

	mu      sync.Mutex
	spooled string
}

// NewRemoteHandle creates a handle on rawURL that downloads with client and
// spools into temp.
func NewRemoteHandle(rawURL string, client *http.Client, temp *TempStore, userAgent string) *RemoteHandle {
	return &RemoteHandle{
		url:       rawURL,
		client:    client,
		temp:      temp,
		userAgent: userAgent,
	}
}

// Open downloads the content on first use and opens the local copy.
func (h *RemoteHandle) Open(ctx context.Context) (io.ReadCloser, error) {
	local, err := h.spool(ctx)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(local)
	if err != nil {
		return nil, NewFetchError("http", h.url, err)
	}
	return f, nil
}

// Name returns the unescaped last segment of the URL path.
func (h *RemoteHandle) Name() string {
	u, err := url.Parse(h.url)
	if err != nil {
		return path.Base(h.url)
	}
	return path.Base(u.Path)
}

// Key returns the URL.
func (h *RemoteHandle) Key() string {
	return h.url
}

// Sibling resolves rel against the URL.
func (h *RemoteHandle) Sibling(rel string) (Handle, error) {
	rel = normalizeRelative(rel)
	base, err := url.Parse(h.url)
	if err != nil {
		return nil, NewError(ErrorInvalidReference, "http", h.url, "invalid URL", err)
	}
	relURL, err := url.Parse(escapeRelative(rel))
	if err != nil || rel == "" || relURL.IsAbs() {
		return nil, NewInvalidReferenceError("http", rel, "sibling must be a relative path")
	}
	return NewRemoteHandle(base.ResolveReference(relURL).String(), h.client, h.temp, h.userAgent), nil
}

func (h *RemoteHandle) spool(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.spooled != "" {
		return h.spooled, nil
	}

	debug.Debug("[http] Downloading %s", h.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return "", NewInvalidReferenceError("http", h.url, err.Error())
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", NewTimeoutError("http", h.url, err)
		}
		return "", NewFetchError("http", h.url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Continue to download
	case http.StatusNotFound, http.StatusGone:
		return "", NewNotFoundError("http", h.url, nil)
	default:
		return "", NewFetchError("http", h.url,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	tmpFile, err := h.temp.Create("download-*" + path.Ext(h.Name()))
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	n, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		h.temp.Remove(tmpFile.Name())
		return "", NewFetchError("http", h.url,
			fmt.Errorf("failed to download content: %w", err))
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		h.temp.Remove(tmpFile.Name())
		return "", NewFetchError("http", h.url, io.ErrUnexpectedEOF)
	}

	debug.Debug("[http] Spooled %d bytes to %s", n, tmpFile.Name())
	h.spooled = tmpFile.Name()
	return h.spooled, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// escapeRelative escapes characters that url.Parse would misread in a
// relative file reference, such as spaces and '#'.
func escapeRelative(rel string) string {
	segments := strings.Split(rel, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
