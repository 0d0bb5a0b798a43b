package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// RemoteFetcher retrieves a remote URL into dst, giving up once maxBytes is
// exceeded. The transport itself is a collaborator; this package only
// defines the byte-cap contract.
type RemoteFetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64, dst io.Writer) (written int64, contentType string, err error)
}

type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: http.DefaultClient}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, maxBytes int64, dst io.Writer) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", newPolicyError("invalid URL: " + url)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, "", newUpstreamError("failed to fetch "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", newUpstreamError(fmt.Sprintf("fetching %s returned status %d", url, resp.StatusCode), nil)
	}

	written, err := io.Copy(dst, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return written, "", newUpstreamError("failed reading response from "+url, err)
	}
	if written > maxBytes {
		return written, "", newPolicyError(fmt.Sprintf("%s exceeds the maximum download size of %d bytes", url, maxBytes))
	}

	return written, resp.Header.Get("Content-Type"), nil
}
