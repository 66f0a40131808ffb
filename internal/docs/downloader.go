// Package docs maintains a local reference library: bulk-downloaded
// documentation that a bounded sub-agent searches before a task that
// needs background material.
package docs

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the download window size.
const DefaultConcurrency = 20

// downloadAttempts is the per-URL retry budget for transient failures.
const downloadAttempts = 2

// Downloader fetches reference documents into a local directory.
type Downloader struct {
	httpClient *http.Client
	dir        string

	// Concurrency caps in-flight downloads.
	Concurrency int
}

// NewDownloader creates a downloader that writes into dir.
func NewDownloader(dir string) *Downloader {
	return &Downloader{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		dir:         dir,
		Concurrency: DefaultConcurrency,
	}
}

// FetchAll downloads every URL, skipping ones already present on disk.
// Failures are collected per URL; one bad document does not stop the
// rest. The returned error aggregates everything that failed.
func (d *Downloader) FetchAll(ctx context.Context, urls []string) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("docs: creating library dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)

	errs := make([]error, len(urls))
	for i, rawURL := range urls {
		i, rawURL := i, rawURL
		g.Go(func() error {
			if err := d.fetchOne(ctx, rawURL); err != nil {
				errs[i] = fmt.Errorf("%s: %w", rawURL, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var failed []string
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("docs: %d of %d downloads failed:\n%s", len(failed), len(urls), strings.Join(failed, "\n"))
	}
	log.Printf("[docs] library up to date, %d documents", len(urls))
	return nil
}

func (d *Downloader) fetchOne(ctx context.Context, rawURL string) error {
	path := filepath.Join(d.dir, FileNameFor(rawURL))
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if err := d.download(ctx, rawURL, path); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return lastErr
}

func (d *Downloader) download(ctx context.Context, rawURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	tmp := path + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// FileNameFor maps a URL to a stable, filesystem-safe file name.
func FileNameFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return url.PathEscape(rawURL)
	}
	name := u.Host + strings.ReplaceAll(u.Path, "/", "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "index"
	}
	return name
}
