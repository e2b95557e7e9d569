// Package httpclient provides basic http functions
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// StatusError is returned when a remote server answers with a status outside of the 2xx range
type StatusError struct {
	// URL is the requested url without its query string, which may carry credentials
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d from %s", e.StatusCode, e.URL)
}

// RetrieveBytes pulls bytes from rawURL using a GET request. params are added to any query already present
// on rawURL. Any response outside the 2xx range is returned as a *StatusError
func RetrieveBytes(ctx context.Context, client *http.Client, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	publicURL := *u
	publicURL.RawQuery = ""

	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", publicURL.String(), err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", publicURL.String(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: publicURL.String(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", publicURL.String(), err)
	}
	return body, nil
}
