package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"bizlens/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
)

const (
	scrapeTimeout    = 60 * time.Second
	maxContentLength = 50000
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// BrowserScraper renders pages in headless Chrome before extraction, so
// JavaScript-heavy sites produce real content. The browser launches lazily
// on first use and is shared across calls within one run.
type BrowserScraper struct {
	browser *rod.Browser
	fallbk  *HTTPScraper
}

// NewBrowserScraper creates a browser-backed scraper with an HTTP fallback.
func NewBrowserScraper() *BrowserScraper {
	return &BrowserScraper{fallbk: NewHTTPScraper()}
}

// Scrape fetches a URL with the headless browser, degrading to plain HTTP
// when the browser cannot launch.
func (s *BrowserScraper) Scrape(ctx context.Context, url string, formats []string) *ScrapeResult {
	timer := logging.StartTimer(logging.CategoryAPI, "BrowserScraper.Scrape")
	defer timer.Stop()

	if err := s.ensureBrowser(); err != nil {
		logging.APIWarn("Browser unavailable (%v), falling back to HTTP scrape", err)
		return s.fallbk.Scrape(ctx, url, formats)
	}

	result, err := s.scrapePage(ctx, url)
	if err != nil {
		logging.APIWarn("Browser scrape of %s failed: %v", url, err)
		return s.fallbk.Scrape(ctx, url, formats)
	}
	return result
}

func (s *BrowserScraper) ensureBrowser() (err error) {
	if s.browser != nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("browser launch panicked: %v", r)
		}
	}()

	launch, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(launch)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser
	return nil
}

func (s *BrowserScraper) scrapePage(ctx context.Context, url string) (result *ScrapeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scrape panicked: %v", r)
		}
	}()

	scrapeCtx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	page, err := s.browser.Context(scrapeCtx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	content, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	title := ""
	if info, err := page.Info(); err == nil {
		title = info.Title
	}

	text := extractText(content)
	logging.API("Scraped %s with browser: %d chars", url, len(text))
	return &ScrapeResult{
		Success:  true,
		URL:      url,
		Content:  text,
		Metadata: map[string]string{"title": title},
		Source:   "browser",
	}, nil
}

// Close shuts the shared browser down.
func (s *BrowserScraper) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}

// HTTPScraper fetches pages with plain HTTP and extracts readable text from
// the HTML. No JavaScript rendering; this is the degrade path.
type HTTPScraper struct {
	client *http.Client
}

// NewHTTPScraper creates an HTTP-only scraper.
func NewHTTPScraper() *HTTPScraper {
	return &HTTPScraper{client: &http.Client{Timeout: scrapeTimeout}}
}

// Scrape fetches a URL and converts the body to readable text.
func (s *HTTPScraper) Scrape(ctx context.Context, url string, formats []string) *ScrapeResult {
	failure := func(err error) *ScrapeResult {
		logging.APIWarn("HTTP scrape of %s failed: %v", url, err)
		return &ScrapeResult{Success: false, URL: url, Source: "http", Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failure(err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return failure(err)
	}

	text := extractText(string(body))
	logging.API("Scraped %s over HTTP: %d chars", url, len(text))
	return &ScrapeResult{
		Success: true,
		URL:     url,
		Content: text,
		Source:  "http",
	}
}

// extractText strips markup, scripts and styles from HTML and collapses
// whitespace, capped at maxContentLength.
func extractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return strings.TrimSpace(htmlContent)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "tr":
				sb.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := multiSpacePattern.ReplaceAllString(sb.String(), " ")
	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	if len(text) > maxContentLength {
		text = text[:maxContentLength]
	}
	return text
}
