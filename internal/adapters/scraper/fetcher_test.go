package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>  Go Meetup Chiang Mai  </title>
<style>body { color: red }</style>
<script>console.log("tracking")</script>
</head>
<body>
<h1>Go Meetup</h1>
<p>Join us   on
Friday evening.</p>
<noscript>enable js</noscript>
</body>
</html>`

func TestFetchExtractsTitleAndText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "Mozilla") {
			t.Errorf("ожидали браузерный User-Agent, получили %q", got)
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(5 * time.Second)
	page, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if page.Title != "Go Meetup Chiang Mai" {
		t.Fatalf("неожиданный заголовок: %q", page.Title)
	}
	if strings.Contains(page.Text, "tracking") || strings.Contains(page.Text, "color: red") || strings.Contains(page.Text, "enable js") {
		t.Fatalf("script/style/noscript не должны попадать в текст: %q", page.Text)
	}
	if !strings.Contains(page.Text, "Join us on Friday evening.") {
		t.Fatalf("пробелы должны схлопываться: %q", page.Text)
	}
}

func TestFetchRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(5 * time.Second)
	if _, err := fetcher.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("ожидали ошибку для статуса 404")
	}
}

func TestFetchHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fetcher := NewHTTPFetcher(5 * time.Second)
	if _, err := fetcher.Fetch(ctx, srv.URL); err == nil {
		t.Fatalf("ожидали ошибку по истечении контекста")
	}
}
