package orchestrator

import (
	"regexp"
	"strings"

	"github.com/FrK06/web-rag-original/internal/tools"
)

// FormatTables rewrites runs of pipe-delimited lines as markdown tables with a
// single separator row after the header. A run becomes a table only when it
// has a separator row or at least two rows, so prose that happens to contain
// pipes is left alone. Applying it twice changes nothing. Fenced code blocks
// and inline code spans are ignored.
func FormatTables(text string) string {
	if !strings.Contains(text, "|") {
		return text
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+2)
	var block []string
	inFence := false

	flush := func() {
		if isTableBlock(block) {
			out = append(out, formatTable(block)...)
		} else {
			out = append(out, block...)
		}
		block = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			flush()
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if !inFence && isTableRow(trimmed) {
			block = append(block, line)
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return strings.Join(out, "\n")
}

// isTableRow needs more than two pipes outside inline code.
func isTableRow(line string) bool {
	n, inCode := 0, false
	for _, r := range line {
		switch {
		case r == '`':
			inCode = !inCode
		case r == '|' && !inCode:
			n++
		}
	}
	return n > 2
}

func isTableBlock(rows []string) bool {
	if len(rows) >= 2 {
		return true
	}
	for _, r := range rows {
		if isSeparatorRow(tableCells(r)) {
			return true
		}
	}
	return false
}

var separatorCell = regexp.MustCompile(`^:?-+:?$`)

func tableCells(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	cells := strings.Split(row, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if !separatorCell.MatchString(c) {
			return false
		}
	}
	return true
}

func formatTable(rows []string) []string {
	var header []string
	var body [][]string
	for _, r := range rows {
		cells := tableCells(r)
		if isSeparatorRow(cells) {
			continue
		}
		if header == nil {
			header = cells
			continue
		}
		body = append(body, cells)
	}
	if header == nil {
		return rows
	}

	render := func(cells []string) string { return "| " + strings.Join(cells, " | ") + " |" }
	out := make([]string, 0, len(body)+2)
	out = append(out, render(header), "|"+strings.Repeat("---|", len(header)))
	for _, b := range body {
		out = append(out, render(b))
	}
	return out
}

var (
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)
	dataImage     = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=]+`)
)

// ExtractImageURLs returns markdown image targets and inline base64 images,
// in order of appearance and without duplicates.
func ExtractImageURLs(text string) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, m := range markdownImage.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range dataImage.FindAllString(text, -1) {
		add(m)
	}
	return out
}

const searchResultCount = 5

type SearchItem struct {
	Title       string `json:"title"`
	URL         string `json:"url,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

type SearchSummary struct {
	Summary string       `json:"summary"`
	Results []SearchItem `json:"results"`
}

// ExtractSearchResults builds the structured search block from the model's own
// text and the search tool responses. It always returns exactly five results,
// padding with placeholders.
func ExtractSearchResults(summary string, results []tools.Result) *SearchSummary {
	out := &SearchSummary{Summary: strings.TrimSpace(summary), Results: make([]SearchItem, 0, searchResultCount)}
	seen := map[string]bool{}
	for _, r := range results {
		if r.Search == nil {
			continue
		}
		for _, sr := range r.Search.Results {
			if len(out.Results) == searchResultCount {
				break
			}
			if sr.Link == "" || seen[sr.Link] {
				continue
			}
			seen[sr.Link] = true
			title := sr.Title
			if title == "" {
				title = sr.Source
			}
			if title == "" {
				title = sr.Link
			}
			out.Results = append(out.Results, SearchItem{Title: title, URL: sr.Link, Snippet: sr.Snippet})
		}
	}
	for len(out.Results) < searchResultCount {
		out.Results = append(out.Results, SearchItem{Title: "Additional information not available", Placeholder: true})
	}
	return out
}
