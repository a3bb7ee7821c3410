package site

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dupgit/cid/internal/directory"
)

var (
	datedDirectoryPattern   = regexp.MustCompile(`\d{8}(?:-\d{4})?/$`)
	numericDirectoryPattern = regexp.MustCompile(`^\d\d+/$`)
)

// Resolver expands Sites into concrete LeafUrls by walking version tokens
// and optional date/numeric subdirectories.
type Resolver struct {
	client directory.Client
}

// NewResolver builds a Resolver backed by client.
func NewResolver(client directory.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve expands one Site into its LeafUrls. A version whose subdirectory
// listing cannot be fetched yields no leaf URL for that version; it is
// logged and skipped, never fatal.
func (r *Resolver) Resolve(ctx context.Context, s Site) []LeafUrl {
	leaves := make([]LeafUrl, 0, len(s.VersionList))

	for _, version := range s.VersionList {
		leaf, ok := r.resolveVersion(ctx, s, version)
		if ok {
			leaves = append(leaves, leaf)
		}
	}

	return leaves
}

func (r *Resolver) resolveVersion(ctx context.Context, s Site, version string) (LeafUrl, bool) {
	baseURL := s.BaseURL + "/" + version

	listing, err := r.client.List(ctx, baseURL)
	if err != nil {
		slog.Warn("site unavailable, skipping version", "site", s.Name, "version", version, "url", baseURL, "error", err)
		return LeafUrl{}, false
	}

	selectedURL, logicalVersion := selectSubdirectory(listing, baseURL, version)

	if len(s.AfterVersionURL) == 0 {
		return LeafUrl{
			Site:    s,
			URL:     selectedURL,
			Version: sanitizeTag(logicalVersion),
		}, true
	}

	finalURL := selectedURL
	var afterVersion string

	for _, segment := range s.AfterVersionURL {
		finalURL += segment + "/"
		afterVersion = segment
	}

	return LeafUrl{
		Site:         s,
		URL:          finalURL,
		Version:      sanitizeTag(logicalVersion),
		AfterVersion: sanitizeTag(afterVersion),
	}, true
}

// selectSubdirectory implements spec.md §4.4 step 2: prefer the most
// recent dated subdirectory, else the greatest numeric subdirectory, else
// the bare URL. It returns the selected URL (always "/"-terminated) and the
// logical version tag to record (the version token, not the raw date, for
// case (a)).
func selectSubdirectory(listing directory.Listing, baseURL string, version string) (string, string) {
	subdirs := listing.Subdirectories()

	dated := subdirs.FilterByName(datedDirectoryPattern).SortByName(directory.Descending)
	if !dated.IsEmpty() {
		first, _ := dated.First()
		return baseURL + "/" + first.Name, version
	}

	numeric := subdirs.FilterByName(numericDirectoryPattern).SortByName(directory.Descending)
	if !numeric.IsEmpty() {
		first, _ := numeric.First()
		return baseURL + "/" + first.Name, version
	}

	return baseURL + "/", version
}

// sanitizeTag strips a trailing "/" and replaces any remaining "/" with
// "_", so the value is safe to use as a path component / history key.
func sanitizeTag(tag string) string {
	tag = strings.TrimSuffix(tag, "/")
	return strings.ReplaceAll(tag, "/", "_")
}
