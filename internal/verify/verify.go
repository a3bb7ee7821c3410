// Package verify re-hashes downloaded images and records verified images in
// the history store.
package verify

import (
	"bufio"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dupgit/cid/internal/checksums"
	"github.com/dupgit/cid/internal/download"
)

// chunkSize matches spec.md §4.7's 16 MiB streaming-read buffer.
const chunkSize = 16 * 1024 * 1024

// Outcome is the tri-state result of verifying one downloaded image.
type Outcome int

const (
	// NotVerified means the image carried CheckSum::None: treated as a
	// pass for logging purposes, but never recorded in the history
	// store, since a record without a hash is not a durable identity.
	NotVerified Outcome = iota
	// VerifiedTrue means the computed digest matched the expected one.
	VerifiedTrue
	// VerifiedFalse means the image could not be confirmed: the computed
	// digest did not match, the file could not be read, or the matching
	// image could not be recorded in the history store.
	VerifiedFalse
)

// String renders the Outcome for logging.
func (o Outcome) String() string {
	switch o {
	case VerifiedTrue:
		return "verified-true"
	case VerifiedFalse:
		return "verified-false"
	default:
		return "not-verified"
	}
}

// Result is the per-item outcome of a verification pass.
type Result struct {
	Item    download.Item
	Outcome Outcome
}

// HistoryRecorder is the subset of historystore.Store the Verifier needs.
type HistoryRecorder interface {
	Insert(name, checksum string, date time.Time) error
}

// Verifier re-hashes downloaded files and records the verified-true ones
// in the HistoryStore. It implements spec.md §4.7.
type Verifier struct {
	history     HistoryRecorder
	concurrency int
}

// NewVerifier builds a Verifier bounded to concurrency simultaneous
// hashing tasks. concurrency below 1 is treated as 1.
func NewVerifier(history HistoryRecorder, concurrency int) *Verifier {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Verifier{history: history, concurrency: concurrency}
}

// Verify correlates every Summary back to its image and schedules
// verification for Success summaries, and for Skipped summaries only when
// verifySkipped is set. Fail and NotStarted summaries are never verified.
// Ordering of the underlying hashing tasks is unspecified; history
// insertion is serialized by the store itself.
func (v *Verifier) Verify(ctx context.Context, summaries []download.Summary, verifySkipped bool) []Result {
	var scheduled []download.Item

	for _, s := range summaries {
		switch s.Status {
		case download.Success:
			scheduled = append(scheduled, s.Item)
		case download.Skipped:
			if verifySkipped {
				scheduled = append(scheduled, s.Item)
			}
		default:
			continue
		}
	}

	results := make([]Result, len(scheduled))

	var wg sync.WaitGroup

	jobs := make(chan int, v.concurrency)

	for w := 0; w < v.concurrency; w++ {
		go func() {
			for i := range jobs {
				results[i] = v.verifyOne(ctx, scheduled[i])
				wg.Done()
			}
		}()
	}

	for i := range scheduled {
		wg.Add(1)
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	return results
}

func (v *Verifier) verifyOne(_ context.Context, item download.Item) Result {
	sum := item.CloudImage.CheckSum

	if sum.None() {
		slog.Info("image has no checksum, treating as pass-through", "name", item.CloudImage.Name)
		return Result{Item: item, Outcome: NotVerified}
	}

	actual, err := hashFile(item.Destination, sum.Kind)
	if err != nil {
		slog.Error("failed to hash downloaded file", "path", item.Destination, "error", err)
		return Result{Item: item, Outcome: VerifiedFalse}
	}

	if subtle.ConstantTimeCompare([]byte(actual), []byte(sum.Hex)) != 1 {
		slog.Error("checksum mismatch, file left on disk", "path", item.Destination, "expected", sum.Hex, "actual", actual)
		return Result{Item: item, Outcome: VerifiedFalse}
	}

	err = v.history.Insert(item.CloudImage.Name, sum.Hex, item.CloudImage.Date)
	if err != nil {
		slog.Error("failed to record verified image in history", "name", item.CloudImage.Name, "error", err)
		return Result{Item: item, Outcome: VerifiedFalse}
	}

	return Result{Item: item, Outcome: VerifiedTrue}
}

func hashFile(path string, kind checksums.Kind) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %q: %w", path, err)
	}

	defer file.Close()

	var hasher hash.Hash
	if kind == checksums.KindSha512 {
		hasher = sha512.New()
	} else {
		hasher = sha256.New()
	}

	reader := bufio.NewReaderSize(file, chunkSize)

	if _, err := io.CopyBuffer(hasher, reader, make([]byte, chunkSize)); err != nil {
		return "", fmt.Errorf("hashing %q: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
