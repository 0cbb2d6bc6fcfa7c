package reader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// fetchClient is shared by all sessions. The timeout bounds how long a
// document can sit in Loading on an unresponsive source.
var fetchClient = &http.Client{
	Timeout: 60 * time.Second,
}

// fetch downloads the full document content from a source URL.
func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching document", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document body: %w", err)
	}
	return data, nil
}
