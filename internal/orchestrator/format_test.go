package orchestrator

import (
	"testing"

	"github.com/FrK06/web-rag-original/internal/tools"
	"github.com/FrK06/web-rag-original/internal/upstream"
)

func TestFormatTables(t *testing.T) {
	in := "Here:\n| Name | Lang | Year\nGo | yes | 2009 |\n  Rust|yes|2015|  \nDone."
	want := "Here:\n| Name | Lang | Year |\n|---|---|---|\n| Go | yes | 2009 |\n| Rust | yes | 2015 |\nDone."
	if got := FormatTables(in); got != want {
		t.Fatalf("unexpected table:\n%s", got)
	}
}

func TestFormatTables_Idempotent(t *testing.T) {
	inputs := []string{
		"plain text without pipes",
		"| a | b |\n|---|---|\n| 1 | 2 |",
		"| a | b |\n| :--- | ---: |\n| 1 | 2 |\n| 3 | 4 |",
		"x | y | z\n\ntext between\n\n|p|q|r|",
		"|  | empty | header |\n| 1 |  | 3 |",
		"```\n| not | a | table |\n```\n| real | table | here |",
		"|||\n|---|---|",
	}
	for _, in := range inputs {
		once := FormatTables(in)
		twice := FormatTables(once)
		if once != twice {
			t.Fatalf("not idempotent for %q:\nonce:  %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestFormatTables_LeavesProseAlone(t *testing.T) {
	inputs := []string{
		"Use `a || b` to short-circuit.",
		"Pick one: red | green | blue",
		"Either x | y | z | w works here.",
		"Shell pipes: `ps aux | grep go | sort | head`\nthen read the output.",
		"a | b\nc | d",
	}
	for _, in := range inputs {
		if got := FormatTables(in); got != in {
			t.Fatalf("prose rewritten:\nin:  %q\ngot: %q", in, got)
		}
	}
}

func TestFormatTables_SingleRowWithSeparator(t *testing.T) {
	in := "| a | b |\n|---|---|"
	if got := FormatTables(in); got != in {
		t.Fatalf("header-only table changed: %q", got)
	}
}

func TestFormatTables_LeavesCodeFencesAlone(t *testing.T) {
	in := "```\na | b | c | d\n```"
	if got := FormatTables(in); got != in {
		t.Fatalf("code fence modified: %q", got)
	}
}

func TestExtractImageURLs(t *testing.T) {
	text := "![Generated Image of a cat](https://img.example/cat.png)\n" +
		"inline data:image/png;base64,iVBORw0KGgo= and again ![x](https://img.example/cat.png)"
	got := ExtractImageURLs(text)
	if len(got) != 2 || got[0] != "https://img.example/cat.png" || got[1] != "data:image/png;base64,iVBORw0KGgo=" {
		t.Fatalf("unexpected urls: %v", got)
	}
	if got := ExtractImageURLs("no images"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestExtractSearchResults_PadsToFive(t *testing.T) {
	results := []tools.Result{{
		Kind: tools.SearchWeb,
		Search: &upstream.SearchResponse{Results: []upstream.SearchResult{
			{Title: "Go", Link: "https://go.dev", Snippet: "Go"},
			{Title: "Go again", Link: "https://go.dev"},
			{Link: "https://pkg.go.dev", Source: "pkg.go.dev"},
		}},
	}}
	s := ExtractSearchResults("  Go is a language.  ", results)
	if s.Summary != "Go is a language." {
		t.Fatalf("unexpected summary %q", s.Summary)
	}
	if len(s.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(s.Results))
	}
	if s.Results[0].URL != "https://go.dev" || s.Results[1].Title != "pkg.go.dev" {
		t.Fatalf("unexpected results: %+v", s.Results[:2])
	}
	for _, r := range s.Results[2:] {
		if !r.Placeholder {
			t.Fatalf("expected placeholder, got %+v", r)
		}
	}
}
