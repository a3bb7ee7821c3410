package directory

import "context"

// FakeClient serves canned Listings and file bodies keyed by URL, for
// exercising SiteResolver and ImageSelector without a network.
type FakeClient struct {
	Listings map[string]Listing
	Bodies   map[string]string
	Errors   map[string]error
}

// NewFakeClient returns an empty FakeClient ready for Listings/Bodies/Errors
// to be populated.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Listings: make(map[string]Listing),
		Bodies:   make(map[string]string),
		Errors:   make(map[string]error),
	}
}

// List returns the canned Listing or error registered for url. An
// unregistered url yields an empty Listing, not an error.
func (f *FakeClient) List(_ context.Context, url string) (Listing, error) {
	if err, ok := f.Errors[url]; ok {
		return Listing{}, err
	}

	return f.Listings[url], nil
}

// Fetch returns the canned body or error registered for url.
func (f *FakeClient) Fetch(_ context.Context, url string) (string, error) {
	if err, ok := f.Errors[url]; ok {
		return "", err
	}

	return f.Bodies[url], nil
}
