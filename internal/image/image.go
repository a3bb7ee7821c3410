// Package image selects, per leaf URL, the newest matching cloud image and
// correlates it with its checksum.
package image

import (
	"time"

	"github.com/dupgit/cid/internal/checksums"
	"github.com/dupgit/cid/internal/site"
)

// CloudImage is a candidate image discovered on one LeafUrl, ready to be
// downloaded and verified.
type CloudImage struct {
	Leaf     site.LeafUrl
	Name     string
	CheckSum checksums.CheckSum
	Date     time.Time
}

// URL is the fully-qualified download URL for the image.
func (c CloudImage) URL() string {
	return c.Leaf.URL + c.Name
}
