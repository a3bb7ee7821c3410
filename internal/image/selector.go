package image

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dupgit/cid/internal/checksums"
	"github.com/dupgit/cid/internal/directory"
	"github.com/dupgit/cid/internal/site"
)

// Fetcher downloads the body of a single file URL, as opposed to listing a
// directory. directory.HTTPClient and directory.FakeClient both implement
// it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HistoryChecker is the subset of historystore.Store the Selector needs,
// kept as an interface so tests can substitute a fake.
type HistoryChecker interface {
	Exists(name, checksum string, date time.Time) bool
}

// Selector picks at most one CloudImage per LeafUrl.
type Selector struct {
	directory directory.Client
	fetcher   Fetcher
	history   HistoryChecker
}

// NewSelector builds a Selector from its collaborators.
func NewSelector(dirClient directory.Client, fetcher Fetcher, history HistoryChecker) *Selector {
	return &Selector{directory: dirClient, fetcher: fetcher, history: history}
}

// Select implements spec.md §4.5. It returns the candidate CloudImage and
// true, or false when the leaf yields nothing (listing failure, no
// matching image, no publication date, or the image is already known to
// the HistoryStore).
func (s *Selector) Select(ctx context.Context, leaf site.LeafUrl) (CloudImage, bool) {
	listing, err := s.directory.List(ctx, leaf.URL)
	if err != nil {
		slog.Warn("leaf URL unavailable, skipping", "url", leaf.URL, "error", err)
		return CloudImage{}, false
	}

	candidates := listing.Files().FilterByName(leaf.Site.ImageNameFilter)
	for _, cleanse := range leaf.Site.ImageNameCleanse {
		candidates = candidates.Filtering(func(e directory.Entry) bool {
			return !cleanse.MatchString(e.Name)
		})
	}

	chosen, ok := candidates.SortByDate(directory.Descending).First()
	if !ok {
		return CloudImage{}, false
	}

	if !chosen.HasTime {
		slog.Warn("chosen image has no modification date, abandoning leaf", "url", leaf.URL, "image", chosen.Name)
		return CloudImage{}, false
	}

	sum := s.resolveChecksum(ctx, leaf, listing, chosen.Name)

	candidate := CloudImage{
		Leaf:     leaf,
		Name:     chosen.Name,
		CheckSum: sum,
		Date:     chosen.ModTime,
	}

	if s.history.Exists(candidate.Name, candidate.CheckSum.String(), candidate.Date) {
		return CloudImage{}, false
	}

	return candidate, true
}

// resolveChecksum implements the aggregate/per-file/none heuristic of
// spec.md §4.5 step 4.
func (s *Selector) resolveChecksum(ctx context.Context, leaf site.LeafUrl, listing directory.Listing, imageName string) checksums.CheckSum {
	files := listing.Files()

	var aggregateName string
	aggregateCount := 0

	for _, f := range files {
		if checksums.IsAggregateChecksumFilename(f.Name) {
			aggregateCount++
			aggregateName = f.Name
		}
	}

	if aggregateCount == 1 {
		body, err := s.fetcher.Fetch(ctx, leaf.URL+aggregateName)
		if err != nil {
			slog.Warn("failed to fetch aggregate checksum file", "url", leaf.URL+aggregateName, "error", err)
			return checksums.CheckSum{Kind: checksums.KindNone}
		}

		return checksums.Parse(imageName, body, aggregateName)
	}

	hasPerFile := false
	for _, f := range files {
		if strings.Contains(f.Name, ".SHA256SUM") {
			hasPerFile = true
			break
		}
	}

	if hasPerFile {
		checksumName := imageName + ".SHA256SUM"

		body, err := s.fetcher.Fetch(ctx, leaf.URL+checksumName)
		if err != nil {
			slog.Warn("failed to fetch per-file checksum", "url", leaf.URL+checksumName, "error", err)
			return checksums.CheckSum{Kind: checksums.KindNone}
		}

		return checksums.Parse(imageName, body, checksumName)
	}

	return checksums.CheckSum{Kind: checksums.KindNone}
}
