package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the text extracted from one search hit.
type Page struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Tokens  int    `json:"tokens"`
}

// PageFetcher downloads and extracts one page. It returns (nil, nil) when
// the page has no recognisable content.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

type zhihuPageKind int

const (
	zhihuUnknown zhihuPageKind = iota
	zhihuQuestion
	zhihuAnswer
	zhihuArticle
)

func classifyZhihuURL(url string) zhihuPageKind {
	switch {
	case strings.Contains(url, "zhuanlan.zhihu.com"):
		return zhihuArticle
	case strings.Contains(url, "zhihu.com/question") && strings.Contains(url, "answer"):
		return zhihuAnswer
	case strings.Contains(url, "zhihu.com/question"):
		return zhihuQuestion
	default:
		return zhihuUnknown
	}
}

// ZhihuFetcher scrapes question, answer and column-article pages.
type ZhihuFetcher struct {
	client    *http.Client
	cookie    string
	userAgent string
}

// NewZhihuFetcher creates a fetcher. Zhihu usually rejects anonymous
// requests, so cookie and userAgent should be set.
func NewZhihuFetcher(client *http.Client, cookie, userAgent string) *ZhihuFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &ZhihuFetcher{client: client, cookie: cookie, userAgent: userAgent}
}

// Fetch downloads url and extracts its title and body text.
func (f *ZhihuFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	kind := classifyZhihuURL(url)
	if kind == zhihuUnknown {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "max-age=0")
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return extractZhihuPage(doc, kind, url), nil
}

func extractZhihuPage(doc *goquery.Document, kind zhihuPageKind, url string) *Page {
	var title string
	var paragraphs, code *goquery.Selection

	switch kind {
	case zhihuArticle:
		title = firstText(doc, "article header h1", "h1.Post-Title", "h1")
		paragraphs = firstMatch(doc, "article .Post-RichText p", "article p")
		code = doc.Find("article pre code")
	case zhihuAnswer:
		title = firstText(doc, "h1.QuestionHeader-title", "h1")
		paragraphs = firstMatch(doc,
			".AnswerItem .RichContent-inner .RichText p",
			".RichContent-inner .RichText p",
			".RichText p")
	case zhihuQuestion:
		title = firstText(doc, "h1.QuestionHeader-title", "h1")
		paragraphs = firstMatch(doc, ".RichContent-inner .RichText p", ".RichText p")
	}
	if title == "" {
		return nil
	}

	var b strings.Builder
	if paragraphs != nil {
		paragraphs.Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(strings.ReplaceAll(s.Text(), "\n", " "))
			if text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		})
	}
	if code != nil {
		code.Each(func(_ int, s *goquery.Selection) {
			block := strings.TrimSpace(strings.ReplaceAll(s.Text(), "\n", " "))
			b.WriteString("\n```\n" + block + "\n```\n")
		})
	}

	return &Page{
		Link:    url,
		Title:   title,
		Content: strings.TrimSpace(b.String()),
	}
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstMatch(doc *goquery.Document, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if s := doc.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return nil
}
