package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sameep-scrape/scrapers"
	"golang.org/x/time/rate"
)

// Downloader fetches a document with the browser session's cookies
type Downloader interface {
	SetCookies(cookies []*http.Cookie)
	Download(ctx context.Context, url string) ([]byte, error)
}

// HTTPDownloader downloads documents over HTTP, rate limited
type HTTPDownloader struct {
	client *resty.Client
}

// NewHTTPDownloader creates a downloader allowing perSecond requests per
// second. A perSecond of zero disables the limit.
func NewHTTPDownloader(timeout time.Duration, perSecond float64) (*HTTPDownloader, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(timeout)

	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	return &HTTPDownloader{client: client}, nil
}

// SetCookies replaces the cookies sent with every request
func (d *HTTPDownloader) SetCookies(cookies []*http.Cookie) {
	d.client.Cookies = nil
	d.client.SetCookies(cookies)
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download %s: status %s", url, resp.Status())
	}
	return resp.Body(), nil
}

var pdfSignature = []byte("%PDF")

// Validate checks that data looks like a real document: larger than
// minSize bytes and starting with the PDF signature. The portal answers
// some requests with an HTML error page labeled as a PDF.
func Validate(data []byte, minSize int) error {
	if len(data) <= minSize {
		return scrapers.ValidationFailed("validate document",
			fmt.Sprintf("%d bytes, want more than %d", len(data), minSize))
	}
	if !bytes.HasPrefix(data, pdfSignature) {
		head := data[:min(len(data), 16)]
		return scrapers.ValidationFailed("validate document", fmt.Sprintf("unexpected signature %q", head))
	}
	return nil
}
