package tools

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const articleHTML = `<html><body><div><main><div><article>
<header><h1 class="Post-Title">Understanding MCP</h1></header>
<div class="Post-RichText">
  <p>MCP is a protocol.</p>
  <p>It connects
  tools.</p>
  <pre><code>print("hi")
print("there")</code></pre>
</div>
</article></div></main></div></body></html>`

const answerHTML = `<html><body>
<h1 class="QuestionHeader-title">What is MCP?</h1>
<div class="AnswerItem"><div class="RichContent-inner"><span class="RichText"><p>First answer.</p><p>More.</p></span></div></div>
</body></html>`

func TestClassifyZhihuURL(t *testing.T) {
	cases := map[string]zhihuPageKind{
		"https://zhuanlan.zhihu.com/p/123":                 zhihuArticle,
		"https://www.zhihu.com/question/1/answer/2":        zhihuAnswer,
		"https://www.zhihu.com/question/1":                 zhihuQuestion,
		"https://www.zhihu.com/people/someone":             zhihuUnknown,
		"https://example.com/zhihu.com-question-lookalike": zhihuUnknown,
	}
	for url, want := range cases {
		if got := classifyZhihuURL(url); got != want {
			t.Errorf("classifyZhihuURL(%s) = %v, want %v", url, got, want)
		}
	}
}

func TestExtractZhihuPage_Article(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(articleHTML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	page := extractZhihuPage(doc, zhihuArticle, "https://zhuanlan.zhihu.com/p/1")
	if page == nil {
		t.Fatalf("expected a page")
	}
	if page.Title != "Understanding MCP" {
		t.Fatalf("unexpected title %q", page.Title)
	}
	if !strings.HasPrefix(page.Content, "MCP is a protocol. It connects   tools.") {
		t.Fatalf("unexpected content %q", page.Content)
	}
	if !strings.Contains(page.Content, "```\nprint(\"hi\") print(\"there\")\n```") {
		t.Fatalf("expected code block in content, got %q", page.Content)
	}
}

func TestExtractZhihuPage_NoTitle(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><p>text</p></body></html>`))
	if page := extractZhihuPage(doc, zhihuQuestion, "u"); page != nil {
		t.Fatalf("expected nil page without a title, got %+v", page)
	}
}

func TestZhihuFetcher_Fetch(t *testing.T) {
	var gotCookie, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, answerHTML)
	}))
	defer srv.Close()

	f := NewZhihuFetcher(srv.Client(), "z_c0=abc", "test-agent")
	// The path makes the URL classify as an answer page.
	page, err := f.Fetch(context.Background(), srv.URL+"/zhihu.com/question/1/answer/2")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page == nil || page.Title != "What is MCP?" || page.Content != "First answer. More." {
		t.Fatalf("unexpected page %+v", page)
	}
	if gotCookie != "z_c0=abc" || gotUA != "test-agent" {
		t.Fatalf("expected cookie and user agent headers, got %q %q", gotCookie, gotUA)
	}

	if page, err := f.Fetch(context.Background(), srv.URL+"/people/x"); page != nil || err != nil {
		t.Fatalf("expected unknown page kind to be skipped, got %+v %v", page, err)
	}
}
