// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/biosearch/pkg/types"
)

// CheckStatus maps an HTTP response status onto the source error taxonomy:
// 404 and 410 are ErrNotFound, 429 is ErrRateLimited, any other non-2xx is
// ErrSourceUnavailable. It returns nil for 2xx.
func CheckStatus(resp *http.Response, what string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%s returned HTTP %d: %w", what, resp.StatusCode, types.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s returned HTTP %d: %w", what, resp.StatusCode, types.ErrRateLimited)
	default:
		return fmt.Errorf("%s returned HTTP %d: %w", what, resp.StatusCode, types.ErrSourceUnavailable)
	}
}

// ClassifyTransport wraps a client.Do error: deadline overruns become
// ErrSourceTimeout, everything else ErrSourceUnavailable. A cancellation of
// the caller's own context is returned unchanged.
func ClassifyTransport(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %v: %w", what, err, types.ErrSourceTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %v: %w", what, err, types.ErrSourceUnavailable)
}

// ErrTooLarge is returned by ReadLimited when the body exceeds the cap.
var ErrTooLarge = errors.New("response body exceeds size limit")

// ReadLimited reads at most limit bytes from r. A body longer than limit
// yields ErrTooLarge. A non-positive limit reads everything.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
