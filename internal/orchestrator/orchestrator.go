package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FrK06/web-rag-original/internal/ai"
	"github.com/FrK06/web-rag-original/internal/cache"
	"github.com/FrK06/web-rag-original/internal/chat"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/metrics"
	"github.com/FrK06/web-rag-original/internal/ratelimit"
	"github.com/FrK06/web-rag-original/internal/tools"
	"github.com/sirupsen/logrus"
)

type State string

const (
	StateStoring      State = "STORING"
	StateReasoning    State = "REASONING"
	StateResponding   State = "RESPONDING"
	StateToolDispatch State = "TOOL_DISPATCH"
	StatePersisting   State = "PERSISTING"
	StateDone         State = "DONE"
	StateError        State = "ERROR"
)

const ReasoningTitle = "Reasoning Completed"

type Request struct {
	Content             string      `json:"content"`
	ConversationHistory []chat.Turn `json:"conversation_history,omitempty"`
	Mode                string      `json:"mode"`
	ThreadID            string      `json:"thread_id,omitempty"`
	AttachedImages      []string    `json:"attached_images,omitempty"`
	IncludeReasoning    bool        `json:"include_reasoning,omitempty"`
}

// Envelope is the reply to one chat turn.
type Envelope struct {
	Message        string         `json:"message"`
	ToolsUsed      []string       `json:"tools_used"`
	ImageURLs      []string       `json:"image_urls"`
	Timestamp      string         `json:"timestamp"`
	ThreadID       string         `json:"thread_id"`
	Reasoning      string         `json:"reasoning,omitempty"`
	ReasoningTitle string         `json:"reasoning_title,omitempty"`
	SearchResults  *SearchSummary `json:"search_results,omitempty"`
}

// TurnError is returned when a turn fails after its thread was stored.
type TurnError struct {
	ThreadID string
	State    State
	Err      error
}

func (e *TurnError) Error() string { return fmt.Sprintf("chat turn failed in %s: %v", e.State, e.Err) }
func (e *TurnError) Unwrap() error { return e.Err }

type ConversationStore interface {
	Store(ctx context.Context, owner, threadID, content string, history []chat.Turn) (*chat.StoreResult, error)
	Update(ctx context.Context, owner, threadID, content string, meta *chat.MessageMetadata) error
}

type ToolRunner interface {
	Specs() []ai.ToolSpec
	Run(ctx context.Context, calls []ai.ToolCall) []tools.Result
}

type Options struct {
	LLMQuota    ratelimit.Rule
	CacheTTL    time.Duration
	LLMTimeout  time.Duration
	MaxTokens   int
	Temperature float64
}

type Orchestrator struct {
	store    ConversationStore
	provider ai.Provider
	tools    ToolRunner
	limiter  ratelimit.Admitter
	cache    *cache.Cache
	opts     Options
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(store ConversationStore, provider ai.Provider, runner ToolRunner, limiter ratelimit.Admitter, c *cache.Cache, opts Options, log logrus.FieldLogger) *Orchestrator {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 60 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.LLMQuota.Scope == "" {
		opts.LLMQuota.Scope = "llm"
	}
	return &Orchestrator{
		store:    store,
		provider: provider,
		tools:    runner,
		limiter:  limiter,
		cache:    c,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

type turn struct {
	log      logrus.FieldLogger
	state    State
	threadID string
	cached   bool
}

func (t *turn) enter(s State) {
	t.log.WithFields(logrus.Fields{"from": t.state, "to": s}).Debug("chat turn transition")
	t.state = s
	if t.threadID != "" {
		t.log = t.log.WithField("thread_id", t.threadID)
	}
}

func (t *turn) fail(err error) error {
	failedIn := t.state
	t.enter(StateError)
	t.log.WithError(err).WithField("state", failedIn).Warn("chat turn failed")
	metrics.ChatTurns.WithLabelValues(string(StateError), fmt.Sprint(t.cached)).Inc()
	if t.threadID == "" {
		return err
	}
	return &TurnError{ThreadID: t.threadID, State: failedIn, Err: err}
}

// Chat runs one turn: store the user message, ask the model (optionally after a
// reasoning pass), run any tool calls, post-process and persist the reply.
func (o *Orchestrator) Chat(ctx context.Context, owner string, req Request) (*Envelope, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	mode := normalizeMode(req.Mode)
	t := &turn{log: o.log.WithField("user_id", owner)}

	// 1) store the user message
	t.enter(StateStoring)
	stored, err := o.store.Store(ctx, owner, req.ThreadID, req.Content, req.ConversationHistory)
	if err != nil {
		return nil, t.fail(err)
	}
	t.threadID = stored.ThreadID
	prior := stored.History
	if n := len(prior); n > 0 && prior[n-1].Role == chat.RoleUser && prior[n-1].Content == req.Content {
		prior = prior[:n-1]
	}

	// 2) daily model quota
	if err := ratelimit.Enforce(ctx, o.limiter, ratelimit.GlobalIdentity, o.opts.LLMQuota); err != nil {
		return nil, t.fail(err)
	}

	// 3) cached reply
	key := o.cacheKey(req.Content, prior, mode, req.AttachedImages, req.IncludeReasoning)
	env := &Envelope{}
	var results []tools.Result
	if o.cache.GetJSON(ctx, key, env) {
		t.cached = true
		t.log.Info("chat turn served from cache")
	} else {
		env, results, err = o.generate(ctx, t, req, mode, prior)
		if err != nil {
			return nil, t.fail(err)
		}
		if cacheable(env, results) {
			o.cache.PutJSON(ctx, key, env, o.opts.CacheTTL)
		}
	}

	// 4) persist the assistant reply
	t.enter(StatePersisting)
	env.ThreadID = stored.ThreadID
	env.Timestamp = o.now().UTC().Format(time.RFC3339Nano)
	meta := &chat.MessageMetadata{ToolsUsed: env.ToolsUsed, ImageURLs: env.ImageURLs, Reasoning: env.Reasoning}
	if err := o.store.Update(ctx, owner, stored.ThreadID, env.Message, meta); err != nil {
		if !common.FailsOpen(common.ComponentThreadUpdate) {
			return nil, t.fail(err)
		}
		t.log.WithError(err).Warn("chat: failed to persist assistant reply")
	}

	t.enter(StateDone)
	metrics.ChatTurns.WithLabelValues(string(StateDone), fmt.Sprint(t.cached)).Inc()
	return env, nil
}

func (o *Orchestrator) generate(ctx context.Context, t *turn, req Request, mode string, prior []chat.Message) (*Envelope, []tools.Result, error) {
	now := o.now()
	history := make([]ai.Message, 0, len(prior)+2)
	for _, m := range prior {
		if m.Role != chat.RoleUser && m.Role != chat.RoleAssistant {
			continue
		}
		history = append(history, ai.Message{Role: m.Role, Content: m.Content})
	}
	user := ai.Message{Role: chat.RoleUser, Content: req.Content, Images: req.AttachedImages}

	env := &Envelope{ToolsUsed: []string{}, ImageURLs: []string{}}

	if req.IncludeReasoning {
		t.enter(StateReasoning)
		msgs := append([]ai.Message{{Role: "system", Content: reasoningPrompt(now, mode)}}, history...)
		msgs = append(msgs, user)
		if out, err := o.complete(ctx, ai.Request{Messages: msgs, MaxTokens: o.opts.MaxTokens, Temperature: o.opts.Temperature}); err != nil {
			t.log.WithError(err).Warn("chat: reasoning pass failed, continuing without it")
		} else if strings.TrimSpace(out.Content) != "" {
			env.Reasoning = out.Content
			env.ReasoningTitle = ReasoningTitle
		}
	}

	t.enter(StateResponding)
	msgs := append([]ai.Message{{Role: "system", Content: systemPrompt(now, t.threadID, mode, len(req.AttachedImages) > 0)}}, history...)
	msgs = append(msgs, user)
	var specs []ai.ToolSpec
	if o.tools != nil {
		specs = o.tools.Specs()
	}
	out, err := o.complete(ctx, ai.Request{
		Messages:    msgs,
		Tools:       specs,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	})
	if err != nil {
		if !errors.Is(err, common.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
		}
		return nil, nil, err
	}

	content := out.Content
	var results []tools.Result
	if len(out.ToolCalls) > 0 && o.tools != nil {
		t.enter(StateToolDispatch)
		results = o.tools.Run(ctx, out.ToolCalls)
		content = tools.Fold(content, results)
		env.ToolsUsed = tools.Labels(results)
	}

	env.Message = FormatTables(content)
	env.ImageURLs = ExtractImageURLs(env.Message)
	for _, l := range env.ToolsUsed {
		if l == tools.SearchWeb.Label() {
			env.SearchResults = ExtractSearchResults(out.Content, results)
			break
		}
	}
	return env, results, nil
}

func (o *Orchestrator) complete(ctx context.Context, req ai.Request) (*ai.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.LLMTimeout)
	defer cancel()
	return o.provider.Complete(ctx, req)
}

func (o *Orchestrator) cacheKey(content string, prior []chat.Message, mode string, images []string, reasoning bool) string {
	recent := prior
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var hist strings.Builder
	for _, m := range recent {
		hist.WriteString(m.Role)
		hist.WriteByte(':')
		hist.WriteString(m.Content)
		hist.WriteByte('\n')
	}
	return cache.Key("llm_response", content, hist.String(), mode, strings.Join(images, "\n"), fmt.Sprint(reasoning))
}

// cacheable reports whether a fresh reply may be served again. Replies that
// sent a message or placed a call, or where a tool failed, are not reused.
func cacheable(env *Envelope, results []tools.Result) bool {
	if strings.TrimSpace(env.Message) == "" {
		return false
	}
	for _, r := range results {
		if r.Err != nil || r.Kind == tools.SendSMS || r.Kind == tools.MakeCall {
			return false
		}
	}
	return true
}
