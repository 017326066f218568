package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/FrK06/web-rag-original/internal/ai"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/logger"
	"github.com/FrK06/web-rag-original/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	delay time.Duration
	err   error
}

func (f *fakeSearch) Search(ctx context.Context, query string, n int) (*upstream.SearchResponse, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &upstream.SearchResponse{Query: query, Results: []upstream.SearchResult{
		{Title: "Go", Link: "https://go.dev", Snippet: "The Go programming language"},
	}}, nil
}

func (f *fakeSearch) Scrape(ctx context.Context, url string) (*upstream.ScrapeResponse, error) {
	return &upstream.ScrapeResponse{Success: true, URL: url, Content: strings.Repeat("a", 800)}, nil
}

type fakeNotify struct{ err error }

func (f *fakeNotify) SendSMS(ctx context.Context, recipient, message string) (*upstream.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &upstream.Receipt{SID: "SM1", Recipient: upstream.FormatPhoneNumber(recipient), Status: "sent"}, nil
}

func (f *fakeNotify) MakeCall(ctx context.Context, recipient, message string) (*upstream.Receipt, error) {
	panic("dialer exploded")
}

type fakeMedia struct{}

func (fakeMedia) GenerateImage(ctx context.Context, req upstream.ImageRequest) (string, error) {
	return "https://img.example/cat.png", nil
}

func (fakeMedia) AnalyzeImage(ctx context.Context, image string) (string, error) {
	return "A cat on a mat.", nil
}

func call(name, args string) ai.ToolCall {
	return ai.ToolCall{ID: "call_" + name, Name: name, Arguments: args}
}

func TestDispatcher_FailureIsIsolated(t *testing.T) {
	d := NewDispatcher(&fakeSearch{}, &fakeNotify{err: errors.New("twilio down")}, fakeMedia{}, Timeouts{}, logger.Discard())

	results := d.Run(context.Background(), []ai.ToolCall{
		call("search_web", `{"query":"golang"}`),
		call("send_sms", `{"recipient":"07911123456","message":"hi"}`),
	})
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)

	out := Fold("Here you go.", results)
	assert.Contains(t, out, "[Go](https://go.dev)")
	assert.Contains(t, out, "Error processing send_sms: twilio down")
	assert.True(t, strings.Index(out, "Search Results") < strings.Index(out, "Error processing"))
	assert.Equal(t, []string{"web-search", "sms"}, Labels(results))
}

func TestDispatcher_PreservesDeclaredOrder(t *testing.T) {
	d := NewDispatcher(&fakeSearch{delay: 100 * time.Millisecond}, &fakeNotify{}, fakeMedia{}, Timeouts{}, logger.Discard())

	results := d.Run(context.Background(), []ai.ToolCall{
		call("search_web", `{"query":"slow"}`),
		call("analyze_image", `{"image_url":"https://img.example/x.png"}`),
		call("generate_image", `{"prompt":"a cat"}`),
	})
	out := Fold("", results)
	search := strings.Index(out, "Search Results")
	analysis := strings.Index(out, "Image Analysis:\nA cat on a mat.")
	image := strings.Index(out, "![Generated Image of a cat](https://img.example/cat.png)")
	require.True(t, search >= 0 && analysis > search && image > analysis, out)
	assert.Equal(t, []string{"web-search", "image-analysis", "image-generation"}, Labels(results))
	require.NotNil(t, results[0].Search)
}

func TestDispatcher_PanicAndTimeoutAreToolFailures(t *testing.T) {
	d := NewDispatcher(&fakeSearch{delay: time.Second}, &fakeNotify{}, fakeMedia{},
		Timeouts{Default: 50 * time.Millisecond}, logger.Discard())

	results := d.Run(context.Background(), []ai.ToolCall{
		call("make_call", `{"recipient":"+15551234567"}`),
		call("search_web", `{"query":"never"}`),
		call("scrape_webpage", `{"url":"https://example.com"}`),
	})
	assert.ErrorIs(t, results[0].Err, common.ErrInternal)
	assert.ErrorIs(t, results[1].Err, common.ErrUpstreamUnavailable)
	require.NoError(t, results[2].Err)
	assert.Equal(t, "Extracted from https://example.com:\n"+strings.Repeat("a", 500)+"...", results[2].Text)
}

func TestDispatcher_UnknownAndMalformedCalls(t *testing.T) {
	d := NewDispatcher(&fakeSearch{}, nil, fakeMedia{}, Timeouts{}, logger.Discard())

	results := d.Run(context.Background(), []ai.ToolCall{
		call("launch_rocket", `{}`),
		call("search_web", `{"query":`),
		call("generate_image", `{"prompt":"x","size":"5x5"}`),
		call("send_sms", `{"recipient":"1","message":"m"}`),
	})
	for i, r := range results {
		assert.ErrorIs(t, r.Err, common.ErrValidation, "call %d", i)
	}
	assert.Equal(t, []string{"web-search", "image-generation"}, Labels(results))
	assert.True(t, strings.HasPrefix(results[0].Fold(), "Error processing launch_rocket:"))
}

func TestDispatcher_SpecsOnlyForConfiguredCollaborators(t *testing.T) {
	d := NewDispatcher(&fakeSearch{}, nil, nil, Timeouts{}, logger.Discard())
	var names []string
	for _, s := range d.Specs() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"search_web", "scrape_webpage"}, names)

	full := NewDispatcher(&fakeSearch{}, &fakeNotify{}, fakeMedia{}, Timeouts{}, logger.Discard())
	assert.Len(t, full.Specs(), len(Kinds))
}

func TestFold_EmptyContent(t *testing.T) {
	r := []Result{{Call: call("analyze_image", ""), Kind: AnalyzeImage, Text: "Image Analysis:\nok"}}
	assert.Equal(t, "Image Analysis:\nok", Fold("", r))
	assert.Equal(t, "intro\n\nImage Analysis:\nok", Fold("intro", r))
}
