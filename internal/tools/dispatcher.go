package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/FrK06/web-rag-original/internal/ai"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/metrics"
	"github.com/FrK06/web-rag-original/internal/upstream"
	"github.com/sirupsen/logrus"
)

const scrapeExcerptRunes = 500

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (*upstream.SearchResponse, error)
	Scrape(ctx context.Context, url string) (*upstream.ScrapeResponse, error)
}

type Notifier interface {
	SendSMS(ctx context.Context, recipient, message string) (*upstream.Receipt, error)
	MakeCall(ctx context.Context, recipient, message string) (*upstream.Receipt, error)
}

type Imager interface {
	GenerateImage(ctx context.Context, req upstream.ImageRequest) (string, error)
	AnalyzeImage(ctx context.Context, image string) (string, error)
}

// Result is the outcome of one tool call. Kind is empty for unknown tools.
type Result struct {
	Call   ai.ToolCall
	Kind   Kind
	Text   string
	Err    error
	Search *upstream.SearchResponse
}

// Fold renders the result as it appears in the reply.
func (r Result) Fold() string {
	if r.Err != nil {
		return fmt.Sprintf("Error processing %s: %v", r.Call.Name, r.Err)
	}
	return r.Text
}

type Timeouts struct {
	Default time.Duration
	Media   time.Duration
}

type Dispatcher struct {
	search   Searcher
	notify   Notifier
	media    Imager
	timeouts Timeouts
	log      logrus.FieldLogger
}

func NewDispatcher(search Searcher, notify Notifier, media Imager, timeouts Timeouts, log logrus.FieldLogger) *Dispatcher {
	if timeouts.Default <= 0 {
		timeouts.Default = 30 * time.Second
	}
	if timeouts.Media <= 0 {
		timeouts.Media = 120 * time.Second
	}
	return &Dispatcher{search: search, notify: notify, media: media, timeouts: timeouts, log: log}
}

func (d *Dispatcher) available(k Kind) bool {
	switch k {
	case SearchWeb, ScrapeWebpage:
		return d.search != nil
	case SendSMS, MakeCall:
		return d.notify != nil
	case GenerateImage, AnalyzeImage:
		return d.media != nil
	}
	return false
}

// Specs returns the schemas of every tool whose collaborator is configured.
func (d *Dispatcher) Specs() []ai.ToolSpec {
	out := make([]ai.ToolSpec, 0, len(Kinds))
	for _, k := range Kinds {
		if d.available(k) {
			out = append(out, k.Spec())
		}
	}
	return out
}

func (d *Dispatcher) timeoutFor(k Kind) time.Duration {
	if k == GenerateImage || k == AnalyzeImage {
		return d.timeouts.Media
	}
	return d.timeouts.Default
}

// Run executes calls concurrently and returns their results in call order.
// A failing call never affects its siblings.
func (d *Dispatcher) Run(ctx context.Context, calls []ai.ToolCall) []Result {
	results := make([]Result, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ai.ToolCall) {
			defer wg.Done()
			results[i] = d.runOne(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) runOne(ctx context.Context, call ai.ToolCall) (res Result) {
	res.Call = call
	kind, ok := ParseKind(call.Name)
	if !ok || !d.available(kind) {
		res.Err = fmt.Errorf("%w: unknown tool %q", common.ErrValidation, call.Name)
		metrics.ToolDispatches.WithLabelValues("unknown", "error").Inc()
		return res
	}
	res.Kind = kind

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("%w: tool panicked: %v", common.ErrInternal, p)
		}
		status := "ok"
		if res.Err != nil {
			status = "error"
			d.log.WithError(res.Err).WithFields(logrus.Fields{
				"tool":    call.Name,
				"call_id": call.ID,
			}).Warn("tool call failed")
		}
		metrics.ToolDispatches.WithLabelValues(string(kind), status).Inc()
		d.log.WithFields(logrus.Fields{
			"tool":     call.Name,
			"status":   status,
			"duration": time.Since(start).String(),
		}).Debug("tool call finished")
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeoutFor(kind))
	defer cancel()

	res.Text, res.Search, res.Err = d.exec(ctx, kind, call.Arguments)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && res.Err != nil && !errors.Is(res.Err, common.ErrUpstreamUnavailable) {
		res.Err = fmt.Errorf("%w: %s timed out", common.ErrUpstreamUnavailable, call.Name)
	}
	return res
}

func (d *Dispatcher) exec(ctx context.Context, kind Kind, raw string) (string, *upstream.SearchResponse, error) {
	switch kind {
	case SearchWeb:
		var a SearchArgs
		if err := decode(raw, &a); err != nil {
			return "", nil, err
		}
		if err := a.normalize(); err != nil {
			return "", nil, err
		}
		resp, err := d.search.Search(ctx, a.Query, a.MaxResults)
		if err != nil {
			return "", nil, err
		}
		return formatSearch(resp), resp, nil

	case ScrapeWebpage:
		var a ScrapeArgs
		if err := decode(raw, &a); err != nil {
			return "", nil, err
		}
		if err := a.normalize(); err != nil {
			return "", nil, err
		}
		resp, err := d.search.Scrape(ctx, a.URL)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("Extracted from %s:\n%s...", a.URL, excerpt(resp.Content, scrapeExcerptRunes)), nil, nil

	case SendSMS, MakeCall:
		var a MessageArgs
		if err := decode(raw, &a); err != nil {
			return "", nil, err
		}
		if kind == SendSMS {
			r, err := d.notify.SendSMS(ctx, a.Recipient, a.Message)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("✅ SMS sent to %s with message: '%s'.", r.Recipient, a.Message), nil, nil
		}
		r, err := d.notify.MakeCall(ctx, a.Recipient, a.Message)
		if err != nil {
			return "", nil, err
		}
		msg := a.Message
		if strings.TrimSpace(msg) == "" {
			msg = "This is an automated call."
		}
		return fmt.Sprintf("✅ Call initiated to %s with message: '%s'.", r.Recipient, msg), nil, nil

	case GenerateImage:
		var a ImageArgs
		if err := decode(raw, &a); err != nil {
			return "", nil, err
		}
		if err := a.normalize(); err != nil {
			return "", nil, err
		}
		url, err := d.media.GenerateImage(ctx, upstream.ImageRequest{Prompt: a.Prompt, Size: a.Size, Style: a.Style})
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("I've created an image based on your description:\n\n![Generated Image of %s](%s)", a.Prompt, url), nil, nil

	case AnalyzeImage:
		var a AnalyzeArgs
		if err := decode(raw, &a); err != nil {
			return "", nil, err
		}
		if err := a.normalize(); err != nil {
			return "", nil, err
		}
		analysis, err := d.media.AnalyzeImage(ctx, a.ImageURL)
		if err != nil {
			return "", nil, err
		}
		return "Image Analysis:\n" + analysis, nil, nil
	}
	return "", nil, fmt.Errorf("%w: unknown tool %q", common.ErrValidation, kind)
}

func formatSearch(resp *upstream.SearchResponse) string {
	var b strings.Builder
	b.WriteString("**Search Results:**\n\n")
	if len(resp.Results) == 0 {
		b.WriteString("No relevant results found.")
		return b.String()
	}
	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "%d. [%s](%s)\n   %s\n\n", i+1, title, r.Link, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Fold appends every result to content in call order, separated by blank lines.
func Fold(content string, results []Result) string {
	parts := make([]string, 0, len(results)+1)
	if strings.TrimSpace(content) != "" {
		parts = append(parts, content)
	}
	for _, r := range results {
		if t := r.Fold(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Labels returns the tools_used labels in call order without duplicates.
// Failed calls still count as used.
func Labels(results []Result) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, r := range results {
		l := r.Kind.Label()
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
