package scraper

import (
	"context"
	"fmt"
	"os"

	"github.com/mongorelic/mongorelic/agent/internal/status"
)

// StatusSource fetches one serverStatus document per call.
type StatusSource interface {
	ServerStatus(ctx context.Context) (status.Document, error)
}

// FileSource serves a serverStatus document saved as MongoDB Extended JSON,
// e.g. the output of `mongosh --eval 'EJSON.stringify(db.serverStatus())'`.
// The file is re-read on every call so it can be edited between ticks.
type FileSource struct {
	Path string
}

// ServerStatus implements StatusSource.
func (f FileSource) ServerStatus(ctx context.Context) (status.Document, error) {
	if err := ctx.Err(); err != nil {
		return status.Document{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return status.Document{}, fmt.Errorf("scraper: read %s: %w", f.Path, err)
	}
	doc, err := status.FromExtJSON(data)
	if err != nil {
		return status.Document{}, fmt.Errorf("scraper: %s: %w", f.Path, err)
	}
	return doc, nil
}
