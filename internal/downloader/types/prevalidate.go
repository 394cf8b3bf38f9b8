package types

import (
	"context"
	"net/http"
	"strings"
)

// PrevalidateURL probes a download URL before handing it to a client,
// catching indexer links that have decayed into HTML error pages.
// It returns an error type only for conclusive failures; network
// errors and odd responses are inconclusive and never block an add.
func PrevalidateURL(ctx context.Context, httpClient *http.Client, rawURL string) (ErrorType, bool) {
	if strings.HasPrefix(rawURL, "magnet:") {
		return ErrorNone, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ErrorNone, false
	}
	// A partial fetch is enough to sniff the content type.
	req.Header.Set("Range", "bytes=0-1023")

	resp, err := httpClient.Do(req)
	if err != nil {
		return ErrorNone, false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrorInvalidTorrent, true
	case resp.StatusCode >= 400:
		return ErrorNone, false
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/html") {
		return ErrorInvalidTorrent, true
	}
	return ErrorNone, false
}
