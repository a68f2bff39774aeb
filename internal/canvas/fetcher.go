package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/pkg/config"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
)

// Fetcher invokes the external data-fetch script and parses its stdout into
// a Document. The subprocess is the only asynchronous boundary of a sync:
// it is awaited in full before any transform work begins, bounded by the
// configured timeout.
type Fetcher struct {
	script  string
	args    []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewFetcher constructs a fetcher from config.
func NewFetcher(cfg config.CanvasConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Fetcher{script: cfg.FetchScript, args: cfg.FetchArgs, timeout: timeout, logger: logger}
}

// Fetch runs the script for the given course and returns the parsed,
// still-unvalidated document.
func (f *Fetcher) Fetch(ctx context.Context, courseID string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := make([]string, 0, len(f.args)+1)
	args = append(args, f.args...)
	if courseID != "" {
		args = append(args, courseID)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.script, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		f.logger.Warn("canvas fetch script failed",
			zap.String("script", f.script),
			zap.String("course_id", courseID),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		if ctx.Err() != nil {
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "canvas fetch timed out")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "canvas fetch script failed")
	}

	doc, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	f.logger.Info("canvas fetch completed",
		zap.String("course_id", courseID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("students", len(doc.Students)),
		zap.Int("modules", len(doc.Modules)))
	return doc, nil
}

// RawJSON re-serializes a document for archival alongside the sync run.
func (f *Fetcher) RawJSON(doc *Document) []byte {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return data
}
