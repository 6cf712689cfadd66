package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
)

const (
	userAgent   = "Mozilla/5.0"
	maxBodySize = 2 << 20 // страница больше 2 МБ обрезается
)

// HTTPFetcher выгружает страницу события и извлекает из HTML заголовок
// и видимый текст для классификатора.
type HTTPFetcher struct {
	client *http.Client
}

var _ domain.PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher создаёт фетчер с ограниченным таймаутом.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch выполняет один GET без повторов; любая ошибка терминальна для
// текущей попытки отправки.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("scraper: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("scraper", "fetch", url, start, err)
		return domain.Page{}, fmt.Errorf("scraper: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = fmt.Errorf("scraper: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("scraper", "fetch", url, start, err)
		return domain.Page{}, err
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodySize))
	metrics.ObserveNetworkRequest("scraper", "fetch", url, start, err)
	if err != nil {
		return domain.Page{}, fmt.Errorf("scraper: parse html: %w", err)
	}

	return domain.Page{Title: extractTitle(doc), Text: extractText(doc)}, nil
}

func extractTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// extractText собирает видимый текст страницы, пропуская script/style,
// и схлопывает пробельные последовательности в один пробел.
func extractText(doc *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
