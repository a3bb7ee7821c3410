package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dupgit/cid/internal/image"
)

// Orchestrator computes destination paths for a batch of CloudImages and
// submits them to a Downloader. It implements spec.md §4.6.
type Orchestrator struct {
	downloader Downloader
}

// NewOrchestrator builds an Orchestrator around the given Downloader.
func NewOrchestrator(downloader Downloader) *Orchestrator {
	return &Orchestrator{downloader: downloader}
}

// Submit ensures each image's destination directory exists, computes its
// destination path (applying the site's Normalize date-suffix rule), and
// submits the resulting batch to the Downloader in one call. Images whose
// destination directory cannot be created are dropped with a logged
// warning and never appear in the returned Summary list.
func (o *Orchestrator) Submit(ctx context.Context, images []image.CloudImage) []Summary {
	items := make([]Item, 0, len(images))

	for _, img := range images {
		dest := destinationPath(img)

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			slog.Warn("failed to create destination directory, dropping image", "path", filepath.Dir(dest), "error", err)
			continue
		}

		items = append(items, Item{
			CloudImage:  img,
			URL:         img.URL(),
			Destination: dest,
		})
	}

	return o.downloader.Download(ctx, items)
}

// destinationPath computes "{site.destination}/{image.name}", inserting a
// "-YYYYMMDD" suffix before the final extension when the site's Normalize
// flag is set. An extensionless name gets the suffix appended instead.
func destinationPath(img image.CloudImage) string {
	name := img.Name

	if img.Leaf.Site.Normalize {
		dateSuffix := img.Date.Format("20060102")
		ext := filepath.Ext(name)

		if ext == "" {
			name = fmt.Sprintf("%s-%s", name, dateSuffix)
		} else {
			base := strings.TrimSuffix(name, ext)
			name = fmt.Sprintf("%s-%s%s", base, dateSuffix, ext)
		}
	}

	return filepath.Join(img.Leaf.Site.Destination, name)
}
