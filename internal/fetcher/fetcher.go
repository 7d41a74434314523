// Package fetcher reads impression logs (CSV, XLSX) and downloads remote
// metrics documents.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a remote document.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
