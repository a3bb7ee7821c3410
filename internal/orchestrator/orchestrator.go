// Package orchestrator wires Settings through SiteResolver, ImageSelector,
// DownloadOrchestrator, and Verifier into one end-to-end run, bounding the
// site and leaf-URL fan-out levels with a worker pool in the style of the
// teacher's buildProductCatalog (job channel + sync.WaitGroup + mutex).
package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dupgit/cid/internal/download"
	"github.com/dupgit/cid/internal/image"
	"github.com/dupgit/cid/internal/site"
	"github.com/dupgit/cid/internal/verify"
)

// Resolver is the subset of site.Resolver the Pipeline needs.
type Resolver interface {
	Resolve(ctx context.Context, s site.Site) []site.LeafUrl
}

// Selector is the subset of image.Selector the Pipeline needs.
type Selector interface {
	Select(ctx context.Context, leaf site.LeafUrl) (image.CloudImage, bool)
}

// Downloader is the subset of download.Orchestrator the Pipeline needs.
type Downloader interface {
	Submit(ctx context.Context, images []image.CloudImage) []download.Summary
}

// Verifier is the subset of verify.Verifier the Pipeline needs.
type Verifier interface {
	Verify(ctx context.Context, summaries []download.Summary, verifySkipped bool) []verify.Result
}

// Report tallies the outcome of one Pipeline.Run call.
type Report struct {
	LeafURLs      int
	Candidates    int
	Summaries     []download.Summary
	VerifyResults []verify.Result
}

// Pipeline drives one full Settings → HistoryStore run.
type Pipeline struct {
	resolver    Resolver
	selector    Selector
	downloader  Downloader
	verifier    Verifier
	concurrency int
}

// NewPipeline builds a Pipeline bounded to concurrency simultaneous tasks
// at the site and leaf-URL fan-out levels. concurrency below 1 is treated
// as 1.
func NewPipeline(resolver Resolver, selector Selector, downloader Downloader, verifier Verifier, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Pipeline{
		resolver:    resolver,
		selector:    selector,
		downloader:  downloader,
		verifier:    verifier,
		concurrency: concurrency,
	}
}

// Run resolves every site's leaf URLs, selects at most one candidate image
// per leaf URL, submits the full candidate batch to the Downloader, and
// finally verifies the results. All leaf URLs of a site are resolved
// before any candidate enters the download phase; all downloads complete
// before verification starts, matching spec.md §5's ordering guarantees.
func (p *Pipeline) Run(ctx context.Context, sites []site.Site, verifySkipped bool) Report {
	leaves := p.resolveAll(ctx, sites)
	candidates := p.selectAll(ctx, leaves)

	summaries := p.downloader.Submit(ctx, candidates)
	results := p.verifier.Verify(ctx, summaries, verifySkipped)

	return Report{
		LeafURLs:      len(leaves),
		Candidates:    len(candidates),
		Summaries:     summaries,
		VerifyResults: results,
	}
}

// resolveAll expands every configured site into its leaf URLs, running up
// to p.concurrency sites' resolution simultaneously.
func (p *Pipeline) resolveAll(ctx context.Context, sites []site.Site) []site.LeafUrl {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []site.LeafUrl
	)

	jobs := make(chan site.Site, p.concurrency)

	for w := 0; w < p.concurrency; w++ {
		go func() {
			for s := range jobs {
				leaves := p.resolver.Resolve(ctx, s)

				mu.Lock()
				results = append(results, leaves...)
				mu.Unlock()

				wg.Done()
			}
		}()
	}

	for _, s := range sites {
		wg.Add(1)
		jobs <- s
	}

	close(jobs)
	wg.Wait()

	return results
}

// selectAll runs ImageSelector over every leaf URL, up to p.concurrency at
// a time, and collects the candidates that were emitted.
func (p *Pipeline) selectAll(ctx context.Context, leaves []site.LeafUrl) []image.CloudImage {
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		candidates []image.CloudImage
	)

	jobs := make(chan site.LeafUrl, p.concurrency)

	for w := 0; w < p.concurrency; w++ {
		go func() {
			for leaf := range jobs {
				img, ok := p.selector.Select(ctx, leaf)
				if ok {
					mu.Lock()
					candidates = append(candidates, img)
					mu.Unlock()
				}

				wg.Done()
			}
		}()
	}

	for _, leaf := range leaves {
		wg.Add(1)
		jobs <- leaf
	}

	close(jobs)
	wg.Wait()

	slog.Debug("image selection complete", "leaf_urls", len(leaves), "candidates", len(candidates))

	return candidates
}
