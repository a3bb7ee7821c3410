// Package download submits a batch of cloud images to a bounded-concurrency
// HTTP downloader and reports a per-item Summary.
package download

import (
	"context"
	"time"

	"github.com/dupgit/cid/internal/image"
)

// Status is the outcome of one submitted download.
type Status int

const (
	// NotStarted means the transfer was never begun, e.g. because the
	// context was cancelled before a download slot became free.
	NotStarted Status = iota
	// Success means the transfer completed with a 200 OK response.
	Success
	// Fail means the transfer was attempted and did not complete.
	Fail
	// Skipped means the destination file already exists with a matching
	// size and was left untouched.
	Skipped
)

// String renders the Status the way log lines and tests expect it.
func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case Fail:
		return "Fail"
	case Skipped:
		return "Skipped"
	default:
		return "NotStarted"
	}
}

// Item is one URL/destination pair submitted to the Downloader.
type Item struct {
	CloudImage  image.CloudImage
	URL         string
	Destination string
}

// Summary is the per-item outcome returned by Download.
type Summary struct {
	Item     Item
	Status   Status
	Reason   string
	Duration time.Duration
}

// Downloader fetches a batch of items with bounded concurrency and returns
// one Summary per item, in no particular order.
type Downloader interface {
	Download(ctx context.Context, items []Item) []Summary
}
