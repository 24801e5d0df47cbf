package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPClient returns the client used to download price sheets.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// maxSheetBytes caps downloaded price sheets.
const maxSheetBytes = 20 << 20

// FetchPriceSheet downloads the document at url and writes it to dest
// atomically.
func FetchPriceSheet(ctx context.Context, client *http.Client, url, dest string) error {
	if client == nil {
		client = DefaultHTTPClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch price sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch price sheet: unexpected status %s", resp.Status)
	}
	return writeFileAtomically(dest, io.LimitReader(resp.Body, maxSheetBytes))
}
