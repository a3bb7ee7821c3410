package download

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/semaphore"

	"github.com/dupgit/cid/internal/buildinfo"
)

// HTTPDownloader is the concrete Downloader: bounded by a weighted
// semaphore sized to concurrency, retried 3 times per item via
// retryablehttp, with an aggregate progress bar suppressed when silent.
type HTTPDownloader struct {
	client      *retryablehttp.Client
	concurrency int64
	silent      bool
}

// NewHTTPDownloader builds an HTTPDownloader. concurrency below 1 is
// treated as 1.
func NewHTTPDownloader(concurrency int, silent bool) *HTTPDownloader {
	if concurrency < 1 {
		concurrency = 1
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	return &HTTPDownloader{
		client:      client,
		concurrency: int64(concurrency),
		silent:      silent,
	}
}

// Download fetches every item, at most HTTPDownloader.concurrency at a
// time, and returns one Summary per item.
func (d *HTTPDownloader) Download(ctx context.Context, items []Item) []Summary {
	summaries := make([]Summary, len(items))

	progressWriter := io.Writer(os.Stderr)
	if d.silent {
		progressWriter = io.Discard
	}

	bar := progressbar.NewOptions(len(items),
		progressbar.OptionSetWriter(progressWriter),
		progressbar.OptionSetDescription("downloading images"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	sem := semaphore.NewWeighted(d.concurrency)

	var wg sync.WaitGroup

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			summaries[i] = Summary{Item: item, Status: NotStarted, Reason: err.Error()}
			continue
		}

		wg.Add(1)

		go func(i int, item Item) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() { _ = bar.Add(1) }()

			summaries[i] = d.downloadOne(ctx, item)
		}(i, item)
	}

	wg.Wait()
	_ = bar.Finish()

	return summaries
}

func (d *HTTPDownloader) downloadOne(ctx context.Context, item Item) Summary {
	start := time.Now()

	if info, err := os.Stat(item.Destination); err == nil {
		req, reqErr := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, item.URL, nil)
		if reqErr == nil {
			req.Header.Set("User-Agent", buildinfo.UserAgent())

			resp, headErr := d.client.Do(req)
			if headErr == nil {
				resp.Body.Close()

				if resp.ContentLength == info.Size() {
					return Summary{Item: item, Status: Skipped, Reason: "destination already exists", Duration: time.Since(start)}
				}
			}
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return Summary{Item: item, Status: Fail, Reason: err.Error(), Duration: time.Since(start)}
	}

	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := d.client.Do(req)
	if err != nil {
		return Summary{Item: item, Status: Fail, Reason: err.Error(), Duration: time.Since(start)}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Summary{Item: item, Status: Fail, Reason: resp.Status, Duration: time.Since(start)}
	}

	out, err := os.Create(item.Destination)
	if err != nil {
		return Summary{Item: item, Status: Fail, Reason: err.Error(), Duration: time.Since(start)}
	}

	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		slog.Warn("download failed partway through", "url", item.URL, "error", err)
		return Summary{Item: item, Status: Fail, Reason: err.Error(), Duration: time.Since(start)}
	}

	return Summary{Item: item, Status: Success, Duration: time.Since(start)}
}
