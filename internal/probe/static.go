package probe

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/domain"
)

// Browser-like defaults so sites that sniff user agents serve the real
// page. A resource's custom headers replace the whole set.
var staticDefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en,en-GB;q=0.9,ru;q=0.8",
	"Cache-Control":   "no-cache",
}

const maxStaticBody = 2 << 20 // 2 MiB is plenty for a landing page

// checkStatic fetches the page and decides whether a real site is
// deployed there, as opposed to a bare web server's placeholder page.
func (e *Executor) checkStatic(ctx context.Context, r domain.Resource) (Outcome, error) {
	body, status, err := e.get(ctx, r.URL, headersOr(r.Headers, staticDefaultHeaders), true)
	if err != nil {
		return Outcome{}, err
	}

	if !utf8.Valid(body) {
		return Outcome{}, &ContentError{Reason: "response body is not decodable text"}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Outcome{}, &ContentError{Reason: "unparsable HTML body: " + err.Error()}
	}

	title := strings.ToLower(doc.Find("title").First().Text())
	defaultPage := strings.Contains(title, "welcome to nginx") ||
		strings.Contains(title, "apache2") ||
		strings.Contains(strings.ToLower(doc.Find("h1").Text()), "it works!")

	result := status >= 200 && status < 300 &&
		strings.Contains(string(body), "<html") &&
		!defaultPage &&
		doc.Find("title").Length() > 0 &&
		(doc.Find("header").Length() > 0 || doc.Find("section").Length() > 0 || doc.Find("footer").Length() > 0)

	e.log.Debug("static_checked",
		zap.String("url", r.URL),
		zap.Int("status", status),
		zap.Bool("default_page", defaultPage),
		zap.Bool("result", result),
	)

	return Outcome{
		Status:     statusLabel(status),
		Response:   Truncate(string(body)),
		StatusCode: status,
		Result:     result,
	}, nil
}

// get performs a GET with the given headers and returns the body and
// status. requireHTML enforces a text/html Content-Type on the response.
func (e *Executor) get(ctx context.Context, url string, headers map[string]string, requireHTML bool) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &TransportError{URL: url, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if requireHTML {
		ct := strings.ToLower(resp.Header.Get("Content-Type"))
		if !strings.Contains(ct, "text/html") {
			return nil, 0, &ContentError{Reason: "unexpected Content-Type: " + ct}
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBody))
	if err != nil {
		return nil, 0, &TransportError{URL: url, Err: err, StatusCode: resp.StatusCode}
	}
	return body, resp.StatusCode, nil
}

// headersOr returns custom when non-empty, otherwise the defaults.
func headersOr(custom, defaults map[string]string) map[string]string {
	if len(custom) > 0 {
		return custom
	}
	return defaults
}
