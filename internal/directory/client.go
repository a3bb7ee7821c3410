package directory

import "context"

// Client lists the contents of an HTTP-served directory. The core pipeline
// (SiteResolver, ImageSelector) depends only on this interface; failures
// from a Client are the caller's to log and skip, never fatal.
type Client interface {
	List(ctx context.Context, url string) (Listing, error)
}
