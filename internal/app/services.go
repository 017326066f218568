package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/FrK06/web-rag-original/internal/ai"
	"github.com/FrK06/web-rag-original/internal/auth"
	"github.com/FrK06/web-rag-original/internal/cache"
	"github.com/FrK06/web-rag-original/internal/chat"
	"github.com/FrK06/web-rag-original/internal/config"
	"github.com/FrK06/web-rag-original/internal/orchestrator"
	"github.com/FrK06/web-rag-original/internal/ratelimit"
	"github.com/FrK06/web-rag-original/internal/store/s3store"
	"github.com/FrK06/web-rag-original/internal/tools"
	"github.com/FrK06/web-rag-original/internal/upstream"
	"github.com/sirupsen/logrus"
)

// Services is everything a chat turn needs. The gateway and the worker build
// the same graph so queued turns behave exactly like synchronous ones.
type Services struct {
	Infra *Infra

	Limiter  *ratelimit.Limiter
	Cache    *cache.Cache
	Tokens   *auth.TokenService
	Accounts *auth.Accounts

	ChatRepo *chat.Repo
	Threads  *chat.Store

	Search    *upstream.SearchService
	Media     *upstream.MediaService
	Notify    *upstream.NotificationService
	Artifacts *s3store.Store
	Prober    *upstream.Prober

	Provider     ai.Provider
	Orchestrator *orchestrator.Orchestrator
}

// NewServices connects the backing stores and builds the service graph.
func NewServices(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Services, error) {
	infra, err := setupInfra(cfg, log)
	if err != nil {
		return nil, err
	}
	svc, err := BuildServices(ctx, cfg, infra, log)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return svc, nil
}

// BuildServices wires the graph over already connected stores.
func BuildServices(ctx context.Context, cfg config.Config, infra *Infra, log logrus.FieldLogger) (*Services, error) {
	s := &Services{Infra: infra}

	s.Limiter = ratelimit.New(infra.KV, log, cfg.QuotaTimeout)
	s.Cache = cache.New(infra.KV, log)

	users := auth.NewUserRepo(infra.DB)
	s.Tokens = auth.NewTokenService(auth.TokenConfig{
		Secret:        cfg.JWTSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		RevocationTTL: cfg.RevocationTTL,
	}, infra.KV, auth.NewRefreshRepo(infra.DB), users, log)
	s.Accounts = auth.NewAccounts(users, s.Tokens, log)

	s.ChatRepo = chat.NewRepo(infra.DB)
	s.Threads = chat.NewStore(s.ChatRepo, cfg.ThreadRetention, cfg.ChatContextWindowSize, log)

	quota := func(scope string, limit int) ratelimit.Rule {
		return ratelimit.Rule{Scope: scope, Limit: limit, Window: cfg.QuotaWindow}
	}

	searchClient := upstream.NewClient("search", cfg.SearchServiceURL, cfg.UpstreamTimeout)
	mediaClient := upstream.NewClient("multimedia", cfg.MultimediaServiceURL, cfg.MediaTimeout)
	notifyClient := upstream.NewClient("notification", cfg.NotificationServiceURL, cfg.UpstreamTimeout)

	s.Search = upstream.NewSearchService(searchClient, s.Limiter, quota("search", cfg.SearchDailyLimit), s.Cache, cfg.SearchCacheTTL)

	var artifacts upstream.ArtifactStore
	if cfg.S3Bucket != "" {
		st, err := s3store.New(ctx, s3store.Options{
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("artifacts: %w", err)
		}
		s.Artifacts = st
		artifacts = st
		log.WithField("bucket", cfg.S3Bucket).Info("generated images go to s3")
	}
	s.Media = upstream.NewMediaService(mediaClient, s.Limiter, upstream.MediaQuotas{
		SpeechToText: quota("speech_to_text", cfg.SpeechToTextDailyLimit),
		TextToSpeech: quota("text_to_speech", cfg.TextToSpeechDailyLimit),
		ImageGen:     quota("image_generation", cfg.ImageGenDailyLimit),
		Vision:       quota("vision", cfg.VisionDailyLimit),
	}, s.Cache, cfg.MediaCacheTTL, artifacts, log)

	s.Notify = upstream.NewNotificationService(notifyClient, s.Limiter, upstream.NotifyQuotas{
		SMS:           quota("sms", cfg.SMSDailyLimit),
		Call:          quota("call", cfg.CallDailyLimit),
		RecipientSMS:  quota("sms_recipient", cfg.RecipientSMSLimit),
		RecipientCall: quota("call_recipient", cfg.RecipientCallLimit),
	}, log)

	checks := []upstream.Checker{
		searchClient,
		mediaClient,
		notifyClient,
		upstream.CheckFunc{Name: "kv", Check: infra.KV.Ping},
	}
	if s.Artifacts != nil {
		checks = append(checks, s.Artifacts)
	}
	s.Prober = upstream.NewProber(cfg.HealthTimeout, checks...)

	provider, err := newProviderRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}
	s.Provider = provider

	dispatcher := tools.NewDispatcher(s.Search, s.Notify, s.Media, tools.Timeouts{
		Default: cfg.UpstreamTimeout,
		Media:   cfg.MediaTimeout,
	}, log)
	s.Orchestrator = orchestrator.New(s.Threads, provider, dispatcher, s.Limiter, s.Cache, orchestrator.Options{
		LLMQuota:   quota("llm", cfg.LLMDailyLimit),
		CacheTTL:   cfg.LLMCacheTTL,
		LLMTimeout: cfg.LLMTimeout,
	}, log)

	log.WithField("provider", cfg.AIProvider).Info("chat services ready")
	return s, nil
}

// newProviderRegistry registers every supported chat completion backend.
// An empty model picks the configured default for that backend.
func newProviderRegistry(cfg config.Config) *ai.Registry {
	pick := func(model, def string) string {
		if m := strings.TrimSpace(model); m != "" {
			return m
		}
		return def
	}

	reg := ai.NewRegistry()
	reg.Register("openai", func(_ context.Context, model string) (ai.Provider, error) {
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, pick(model, cfg.OpenAIModel), cfg.LLMTimeout, cfg.LLMMaxRPS), nil
	})
	reg.Register("openrouter", func(_ context.Context, model string) (ai.Provider, error) {
		p := ai.NewOpenAIProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, pick(model, cfg.OpenRouterModel), cfg.LLMTimeout, cfg.LLMMaxRPS)
		p.SiteURL = cfg.OpenRouterSiteURL
		p.AppName = cfg.OpenRouterAppName
		return p, nil
	})
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, pick(model, cfg.OllamaModel), cfg.LLMTimeout), nil
	})
	return reg
}

// Close releases the backing stores.
func (s *Services) Close() error {
	return s.Infra.Close()
}
