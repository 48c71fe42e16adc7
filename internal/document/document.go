// Package document downloads product leaflets and extracts their text.
// Downloads are bounded by a permit pool and every failure degrades to an
// empty string; missing leaflet text is handled upstream.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/cmn/pool"
)

var driveFileIDRe = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)

// TextExtractor turns downloaded file bytes into plain text. Extractors
// return "" when the format cannot be read.
type TextExtractor func(data []byte) string

// PlainText treats the payload as UTF-8 text. It stands in for format
// specific extractors wired at startup.
func PlainText(data []byte) string {
	text := string(data)
	if !strings.Contains(text, "\x00") {
		return text
	}
	return ""
}

// Fetcher downloads leaflets.
type Fetcher struct {
	http    *resty.Client
	pool    *pool.Pool
	extract TextExtractor
	tempDir string
}

// Option adjusts a Fetcher.
type Option func(*Fetcher)

// WithTempDir sets where in-flight downloads are staged.
func WithTempDir(dir string) Option {
	return func(f *Fetcher) { f.tempDir = dir }
}

// WithTimeout sets the per-download timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.http.SetTimeout(d) }
}

// NewFetcher creates a fetcher bounded by the download pool.
func NewFetcher(downloads *pool.Pool, extract TextExtractor, opts ...Option) *Fetcher {
	f := &Fetcher{
		http:    resty.New().SetTimeout(30 * time.Second),
		pool:    downloads,
		extract: extract,
		tempDir: filepath.Join(os.TempDir(), "pharmaboost-leaflets"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Extract runs the configured text extractor over document bytes the
// caller already has, such as a direct upload.
func (f *Fetcher) Extract(data []byte) string {
	return f.extract(data)
}

// DriveDownloadURL rewrites a Google Drive viewer link into a direct
// download link. Returns "" when no file id can be found.
func DriveDownloadURL(url string) string {
	m := driveFileIDRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", m[1])
}

// LeafletText downloads the leaflet behind link and extracts its text.
// Every failure path logs and returns "".
func (f *Fetcher) LeafletText(ctx context.Context, sku, link string) string {
	downloadURL := link
	if strings.Contains(link, "drive.google.com") {
		logger.Info(ctx, "Rewriting Google Drive link", "sku", sku)
		downloadURL = DriveDownloadURL(link)
		if downloadURL == "" {
			logger.Error(ctx, "Could not extract Drive file id from link", "sku", sku)
			return ""
		}
	}

	if err := f.pool.Acquire(ctx); err != nil {
		logger.Warn(ctx, "Could not acquire download permit", "sku", sku, "err", err)
		return ""
	}
	defer f.pool.Release()

	logger.Info(ctx, "Downloading leaflet", "sku", sku)
	resp, err := f.http.R().SetContext(ctx).Get(downloadURL)
	if err != nil || resp.IsError() {
		logger.Error(ctx, "Leaflet download failed", "sku", sku, "err", err)
		return ""
	}

	body := resp.Body()
	// Large Drive files answer with an interstitial page first; follow the
	// confirm link it carries.
	if strings.Contains(resp.Header().Get("Content-Type"), "text/html") {
		confirmURL := driveConfirmURL(body)
		if confirmURL == "" {
			logger.Error(ctx, "Drive interstitial without confirm link", "sku", sku)
			return ""
		}
		resp, err = f.http.R().SetContext(ctx).Get(confirmURL)
		if err != nil || resp.IsError() {
			logger.Error(ctx, "Leaflet confirm download failed", "sku", sku, "err", err)
			return ""
		}
		body = resp.Body()
	}

	if err := os.MkdirAll(f.tempDir, 0700); err != nil {
		logger.Error(ctx, "Could not create staging directory", "err", err)
		return ""
	}
	staged := filepath.Join(f.tempDir, sku+".pdf")
	if err := os.WriteFile(staged, body, 0600); err != nil {
		logger.Error(ctx, "Could not stage leaflet", "sku", sku, "err", err)
		return ""
	}
	defer func() { _ = os.Remove(staged) }()

	data, err := os.ReadFile(staged)
	if err != nil {
		logger.Error(ctx, "Could not read staged leaflet", "sku", sku, "err", err)
		return ""
	}
	return f.extract(data)
}

// driveConfirmURL finds the uc-download-link anchor in a Drive
// interstitial page.
func driveConfirmURL(page []byte) string {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return ""
	}

	var href string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if href != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			var id, link string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "id":
					id = attr.Val
				case "href":
					link = attr.Val
				}
			}
			if id == "uc-download-link" && link != "" {
				href = link
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	return "https://drive.google.com" + href
}
