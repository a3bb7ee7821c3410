package orchestrator_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dupgit/cid/internal/directory"
	"github.com/dupgit/cid/internal/download"
	"github.com/dupgit/cid/internal/historystore"
	"github.com/dupgit/cid/internal/image"
	"github.com/dupgit/cid/internal/orchestrator"
	"github.com/dupgit/cid/internal/site"
	"github.com/dupgit/cid/internal/testutils"
	"github.com/dupgit/cid/internal/verify"
)

func TestMain(m *testing.M) {
	testutils.DisableLogging()
	os.Exit(m.Run())
}

const (
	fileContent = "hello"
	// sha256("hello")
	fileContentSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
)

// fakeDownloader writes fileContent to each item's destination, simulating
// a successful download whose bytes actually match the aggregate checksum
// used by the tests below.
type fakeDownloader struct {
	mu       sync.Mutex
	received [][]image.CloudImage
}

func (f *fakeDownloader) Submit(_ context.Context, images []image.CloudImage) []download.Summary {
	f.mu.Lock()
	f.received = append(f.received, images)
	f.mu.Unlock()

	summaries := make([]download.Summary, len(images))

	for i, img := range images {
		dest := filepath.Join(img.Leaf.Site.Destination, img.Name)
		_ = os.WriteFile(dest, []byte(fileContent), 0o644)

		summaries[i] = download.Summary{
			Item:   download.Item{CloudImage: img, URL: img.URL(), Destination: dest},
			Status: download.Success,
		}
	}

	return summaries
}

func openTestStore(t *testing.T) *historystore.Store {
	t.Helper()

	store, err := historystore.Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func newLeaf(t *testing.T, url string) site.LeafUrl {
	t.Helper()

	return site.LeafUrl{
		URL: url,
		Site: site.Site{
			Name:            "fedora",
			ImageNameFilter: regexp.MustCompile(`\.qcow2$`),
			Destination:     t.TempDir(),
		},
	}
}

// fakeResolver returns a fixed set of leaves regardless of the site,
// letting the pipeline test exercise selection/download/verify wiring
// without a real SiteResolver.
type fakeResolver struct {
	leaves []site.LeafUrl
}

func (f fakeResolver) Resolve(_ context.Context, _ site.Site) []site.LeafUrl {
	return f.leaves
}

func buildDirClient(t *testing.T, leafURL string) *directory.FakeClient {
	t.Helper()

	dirClient := directory.NewFakeClient()
	dirClient.Listings[leafURL] = directory.NewListing(nil, []directory.Entry{
		{Name: "foo.qcow2", ModTime: time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC), HasTime: true},
		{Name: "SHA256SUMS"},
	})
	dirClient.Bodies[leafURL+"SHA256SUMS"] = fileContentSHA256 + "  foo.qcow2\n"

	return dirClient
}

func TestPipelineRunEndToEnd(t *testing.T) {
	t.Parallel()

	leafURL := "https://example.test/fedora/38/"
	dirClient := buildDirClient(t, leafURL)

	store := openTestStore(t)
	leaf := newLeaf(t, leafURL)
	resolver := fakeResolver{leaves: []site.LeafUrl{leaf}}
	selector := image.NewSelector(dirClient, dirClient, store)
	dl := &fakeDownloader{}
	verifier := verify.NewVerifier(store, 2)

	pipeline := orchestrator.NewPipeline(resolver, selector, dl, verifier, 4)

	report := pipeline.Run(context.Background(), []site.Site{leaf.Site}, false)

	require.Equal(t, 1, report.LeafURLs)
	require.Equal(t, 1, report.Candidates)
	require.Len(t, report.Summaries, 1)
	require.Len(t, report.VerifyResults, 1)
	require.Equal(t, verify.VerifiedTrue, report.VerifyResults[0].Outcome)
}

func TestPipelineSecondRunEmitsZeroDownloads(t *testing.T) {
	t.Parallel()

	leafURL := "https://example.test/fedora/38/"
	dirClient := buildDirClient(t, leafURL)

	store := openTestStore(t)
	leaf := newLeaf(t, leafURL)
	resolver := fakeResolver{leaves: []site.LeafUrl{leaf}}
	selector := image.NewSelector(dirClient, dirClient, store)
	dl := &fakeDownloader{}
	verifier := verify.NewVerifier(store, 2)

	pipeline := orchestrator.NewPipeline(resolver, selector, dl, verifier, 4)

	first := pipeline.Run(context.Background(), []site.Site{leaf.Site}, false)
	require.Len(t, first.Summaries, 1)
	require.Equal(t, verify.VerifiedTrue, first.VerifyResults[0].Outcome)

	second := pipeline.Run(context.Background(), []site.Site{leaf.Site}, false)
	require.Empty(t, second.Summaries)
	require.Equal(t, 0, second.Candidates)
}
