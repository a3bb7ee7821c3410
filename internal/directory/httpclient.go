package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"gopkg.in/antchfx/htmlquery.v1"

	"github.com/dupgit/cid/internal/buildinfo"
)

// HTTPClient lists Apache/nginx mod_autoindex-style HTML directory
// listings, the layout used by Fedora, CentOS, Debian, and Ubuntu mirrors
// alike.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient builds an HTTPClient using the given *http.Client, or
// http.DefaultClient's transport settings (proxy-aware via
// http.ProxyFromEnvironment) if client is nil.
func NewHTTPClient(client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPClient{client: client}
}

var apacheDatePattern = regexp.MustCompile(`\d{2}-[A-Za-z]{3}-\d{4}\s+\d{2}:\d{2}`)

// List fetches url and parses its anchor tags into subdirectory and file
// entries. A fetch or parse failure is returned to the caller, who treats
// the URL as unavailable for this run.
func (c *HTTPClient) List(ctx context.Context, url string) (Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Listing{}, fmt.Errorf("building request for %q: %w", url, err)
	}

	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return Listing{}, fmt.Errorf("fetching %q: %w", url, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Listing{}, fmt.Errorf("fetching %q: unexpected status %s", url, resp.Status)
	}

	doc, err := htmlquery.Parse(resp.Body)
	if err != nil {
		return Listing{}, fmt.Errorf("parsing directory listing for %q: %w", url, err)
	}

	return parseListing(doc), nil
}

// Fetch retrieves url and returns its body as a string, for downloading
// and parsing checksum files (as opposed to directory listings).
func (c *HTTPClient) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %q: %w", url, err)
	}

	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %q: %w", url, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %q: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body of %q: %w", url, err)
	}

	return string(body), nil
}

func parseListing(doc *html.Node) Listing {
	var subdirectories, files []Entry

	for _, anchor := range htmlquery.Find(doc, "//a[@href]") {
		href := htmlquery.SelectAttr(anchor, "href")
		if href == "" || strings.HasPrefix(href, "?") || href == "../" || href == "/" {
			continue
		}

		entry := Entry{Name: href}
		if text := trailingText(anchor); text != "" {
			if match := apacheDatePattern.FindString(text); match != "" {
				if t, err := time.Parse("02-Jan-2006 15:04", match); err == nil {
					entry.ModTime = t
					entry.HasTime = true
				}
			}
		}

		if strings.HasSuffix(href, "/") {
			subdirectories = append(subdirectories, entry)
		} else {
			files = append(files, entry)
		}
	}

	return NewListing(subdirectories, files)
}

// trailingText returns the text of the sibling text node immediately
// following an <a> tag, which is where mod_autoindex/nginx-autoindex place
// the modification date and size columns.
func trailingText(anchor *html.Node) string {
	for sibling := anchor.NextSibling; sibling != nil; sibling = sibling.NextSibling {
		if sibling.Type == html.TextNode {
			if strings.TrimSpace(sibling.Data) != "" {
				return sibling.Data
			}

			continue
		}

		break
	}

	return ""
}
