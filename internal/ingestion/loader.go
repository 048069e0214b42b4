package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// ExtractMode selects how page text is pulled out of HTML.
type ExtractMode string

const (
	// ExtractText keeps all visible document text (script, style and
	// noscript removed).
	ExtractText ExtractMode = "text"
	// ExtractReadability keeps only the main article as detected by
	// go-readability.
	ExtractReadability ExtractMode = "readability"
)

// maxPageBytes caps the size of a fetched page.
const maxPageBytes = 20 << 20

// blockElements receive a trailing newline before text extraction so that
// adjacent blocks do not run together.
const blockElements = "p, div, br, li, dt, dd, h1, h2, h3, h4, h5, h6, pre, tr, " +
	"section, article, header, footer, nav, aside, blockquote, table, ul, ol, hr"

// Page is one loaded document: its text and descriptive metadata.
type Page struct {
	// URL is the address the page was fetched from.
	URL string
	// Text is the extracted plain text.
	Text string
	// Metadata carries source, title, description and language when known.
	Metadata map[string]string
}

// PageLoader fetches a source and returns its documents.
type PageLoader interface {
	// Load returns zero or more pages for src.
	Load(ctx context.Context, src Source) ([]Page, error)
}

// LoaderConfig holds the settings for a WebLoader.
type LoaderConfig struct {
	// HTTPTimeout is the timeout for each fetch request. Defaults to 30s.
	HTTPTimeout time.Duration
	// UserAgent is sent with fetch requests.
	UserAgent string
	// Extract selects the extraction mode. Defaults to ExtractText.
	Extract ExtractMode
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// WebLoader fetches a single web page over HTTP and extracts its text.
type WebLoader struct {
	client    *http.Client
	userAgent string
	extract   ExtractMode
}

// NewWebLoader constructs a WebLoader from cfg.
func NewWebLoader(cfg *LoaderConfig) (*WebLoader, error) {
	if cfg == nil {
		cfg = &LoaderConfig{}
	}
	switch cfg.Extract {
	case "":
		cfg.Extract = ExtractText
	case ExtractText, ExtractReadability:
	default:
		return nil, fmt.Errorf("ingestion: unknown extract mode %q (want text or readability)", cfg.Extract)
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "docqa/1.0 (documentation ingestion)"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &WebLoader{client: client, userAgent: cfg.UserAgent, extract: cfg.Extract}, nil
}

// Load fetches src.URL and returns one Page, or none when the page has no
// text. Non-200 responses are errors.
func (l *WebLoader) Load(ctx context.Context, src Source) ([]Page, error) {
	body, contentType, err := l.fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{"source": src.URL}
	var text string
	if isHTML(contentType, body) {
		text, err = l.extractHTML(body, src.URL, meta)
		if err != nil {
			return nil, err
		}
	} else {
		text = normalizeText(string(body))
	}

	if text == "" {
		return nil, nil
	}
	return []Page{{URL: src.URL, Text: text, Metadata: meta}}, nil
}

// fetch retrieves the raw body of a URL along with its Content-Type.
func (l *WebLoader) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// extractHTML parses body and returns its text, filling meta with the title,
// description and language found in the document head.
func (l *WebLoader) extractHTML(body []byte, rawURL string, meta map[string]string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
		meta["description"] = strings.TrimSpace(desc)
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && lang != "" {
		meta["language"] = lang
	}

	if l.extract == ExtractReadability {
		return extractArticle(body, rawURL, meta)
	}

	doc.Find("script, style, noscript, template").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return normalizeText(root.Text()), nil
}

// extractArticle runs go-readability over body and returns the main article text.
func extractArticle(body []byte, rawURL string, meta map[string]string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	if article.Title != "" {
		meta["title"] = article.Title
	}
	if _, ok := meta["description"]; !ok && article.Excerpt != "" {
		meta["description"] = article.Excerpt
	}
	return normalizeText(article.TextContent), nil
}

// isHTML reports whether the response should be parsed as HTML. Missing or
// generic content types fall back to sniffing.
func isHTML(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mt == "text/html", mt == "application/xhtml+xml":
			return true
		case strings.HasPrefix(mt, "text/"):
			return false
		}
	}
	return strings.HasPrefix(http.DetectContentType(body), "text/html")
}

// normalizeText collapses whitespace within lines and reduces runs of blank
// lines to a single paragraph break.
func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	var b strings.Builder
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(line)
		blank = false
	}
	return b.String()
}
