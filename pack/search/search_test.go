package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/sysagent/domain/tool"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div id="links" class="results">
  <div class="result results_links results_links_deep result--ad">
    <div class="links_main links_deep result__body">
      <a class="result__a" href="https://ads.example.com">Sponsored</a>
      <a class="result__snippet" href="https://ads.example.com">Buy now</a>
    </div>
  </div>
  <div class="result results_links results_links_deep web-result">
    <div class="links_main links_deep result__body">
      <h2 class="result__title">
        <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fubuntu.com%2Fabout%2Frelease-cycle&amp;rut=abc">Ubuntu <b>release</b> cycle</a>
      </h2>
      <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fubuntu.com">Ubuntu 22.04 LTS is
        supported until 2027.</a>
    </div>
  </div>
  <div class="result results_links results_links_deep web-result">
    <div class="links_main links_deep result__body">
      <h2 class="result__title"><a class="result__a" href="https://wiki.debian.org/DebianReleases">Debian Releases</a></h2>
      <a class="result__snippet" href="https://wiki.debian.org/DebianReleases">Debian 12 bookworm.</a>
    </div>
  </div>
  <div class="result results_links web-result">
    <div class="links_main result__body">
      <h2 class="result__title"><a class="result__a" href="https://fedoraproject.org">Fedora</a></h2>
    </div>
  </div>
</div>
</body></html>`

func newDDGServer(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()

	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		queries = append(queries, r.PostForm.Get("q"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &queries
}

func TestDuckDuckGo_Search(t *testing.T) {
	t.Parallel()

	srv, queries := newDDGServer(t, http.StatusOK, resultsPage)
	ddg := NewDuckDuckGo(WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))

	hits, err := ddg.Search(context.Background(), "  ubuntu lts support ", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(*queries) != 1 || (*queries)[0] != "ubuntu lts support" {
		t.Errorf("queries = %v", *queries)
	}
	if len(hits) != 3 {
		t.Fatalf("len(hits) = %d, want 3: %+v", len(hits), hits)
	}

	first := hits[0]
	if first.Title != "Ubuntu release cycle" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Link != "https://ubuntu.com/about/release-cycle" {
		t.Errorf("Link = %q", first.Link)
	}
	if first.Snippet != "Ubuntu 22.04 LTS is supported until 2027." {
		t.Errorf("Snippet = %q", first.Snippet)
	}
	if hits[2].Title != "Fedora" || hits[2].Snippet != "" {
		t.Errorf("hits[2] = %+v", hits[2])
	}
}

func TestDuckDuckGo_SearchLimit(t *testing.T) {
	t.Parallel()

	srv, _ := newDDGServer(t, http.StatusOK, resultsPage)
	ddg := NewDuckDuckGo(WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))

	hits, err := ddg.Search(context.Background(), "distro", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("len(hits) = %d, want 1", len(hits))
	}
}

func TestDuckDuckGo_Errors(t *testing.T) {
	t.Parallel()

	t.Run("empty query", func(t *testing.T) {
		t.Parallel()

		ddg := NewDuckDuckGo(WithEndpoint("http://127.0.0.1:0"))
		if _, err := ddg.Search(context.Background(), "   ", 4); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Search() error = %v, want ErrEmptyQuery", err)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()

		srv, _ := newDDGServer(t, http.StatusAccepted, "slow down")
		ddg := NewDuckDuckGo(WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
		_, err := ddg.Search(context.Background(), "q", 4)
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("Search() error = %v, want ErrUnexpectedStatus", err)
		}
	})

	t.Run("no results", func(t *testing.T) {
		t.Parallel()

		srv, _ := newDDGServer(t, http.StatusOK, "<html><body><div class=\"no-results\">No results.</div></body></html>")
		ddg := NewDuckDuckGo(WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
		hits, err := ddg.Search(context.Background(), "zzzz", 4)
		if err != nil || len(hits) != 0 {
			t.Errorf("Search() = %v, %v; want no hits", hits, err)
		}
	})
}

func TestResolveLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		href string
		want string
	}{
		{"", ""},
		{"https://example.com/a", "https://example.com/a"},
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&rut=x", "https://go.dev/"},
		{"//example.com/path", "https://example.com/path"},
	}

	for _, tt := range tests {
		if got := resolveLink(tt.href); got != tt.want {
			t.Errorf("resolveLink(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestSearchTool(t *testing.T) {
	t.Parallel()

	mp := NewMemoryProvider()
	mp.Add("ubuntu lts", Hit{Title: "Ubuntu", Link: "https://ubuntu.com", Snippet: "LTS releases"})

	p, err := New(mp, WithMaxResults(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tl, ok := p.GetTool(ToolName)
	if !ok {
		t.Fatalf("tool %s not found", ToolName)
	}
	if tl.InputKind() != tool.InputText || !tl.Annotations().CanRetry() {
		t.Errorf("tool contract = %v, %+v", tl.InputKind(), tl.Annotations())
	}

	res, err := tl.Execute(context.Background(), "Ubuntu LTS")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := "[snippet: LTS releases, title: Ubuntu, link: https://ubuntu.com]"
	if res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}

	res, err = tl.Execute(context.Background(), "nothing here")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != NoResults {
		t.Errorf("Output = %q, want %q", res.Output, NoResults)
	}
	if q := mp.Queries(); len(q) != 2 {
		t.Errorf("Queries() = %v", q)
	}
}

func TestFormatHits(t *testing.T) {
	t.Parallel()

	got := FormatHits([]Hit{
		{Title: "a", Link: "https://a", Snippet: "sa"},
		{Title: "b", Link: "https://b", Snippet: "sb"},
	})
	if strings.Count(got, "[snippet:") != 2 || !strings.Contains(got, "], [") {
		t.Errorf("FormatHits() = %q", got)
	}
}

func TestNew_RequiresProvider(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Error("New(nil) error = nil, want error")
	}
}
