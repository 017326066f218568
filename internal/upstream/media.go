package upstream

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/FrK06/web-rag-original/internal/cache"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

type MediaQuotas struct {
	SpeechToText ratelimit.Rule
	TextToSpeech ratelimit.Rule
	ImageGen     ratelimit.Rule
	Vision       ratelimit.Rule
}

// ArtifactStore persists generated images and returns a fetchable URL.
type ArtifactStore interface {
	PutImage(ctx context.Context, data []byte, contentType string) (string, error)
}

type ImageRequest struct {
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Style   string `json:"style,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type Speech struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

type MediaService struct {
	client    *Client
	limiter   ratelimit.Admitter
	quotas    MediaQuotas
	cache     *cache.Cache
	cacheTTL  time.Duration
	artifacts ArtifactStore
	log       logrus.FieldLogger
}

func NewMediaService(client *Client, limiter ratelimit.Admitter, quotas MediaQuotas, c *cache.Cache, cacheTTL time.Duration, artifacts ArtifactStore, log logrus.FieldLogger) *MediaService {
	return &MediaService{
		client:    client,
		limiter:   limiter,
		quotas:    quotas,
		cache:     c,
		cacheTTL:  cacheTTL,
		artifacts: artifacts,
		log:       log,
	}
}

func (s *MediaService) Transcribe(ctx context.Context, audio string) (string, error) {
	if strings.TrimSpace(audio) == "" {
		return "", fmt.Errorf("%w: audio is required", common.ErrValidation)
	}
	if err := ratelimit.Enforce(ctx, s.limiter, ratelimit.GlobalIdentity, s.quotas.SpeechToText); err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := s.client.PostJSON(ctx, "/speech-to-text", map[string]string{"audio": audio}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (s *MediaService) Synthesize(ctx context.Context, text, voice string) (*Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", common.ErrValidation)
	}
	if voice == "" {
		voice = "alloy"
	}

	key := cache.Key("tts", text, voice)
	var cached Speech
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}
	if err := ratelimit.Enforce(ctx, s.limiter, ratelimit.GlobalIdentity, s.quotas.TextToSpeech); err != nil {
		return nil, err
	}

	var out Speech
	if err := s.client.PostJSON(ctx, "/text-to-speech", map[string]string{"text": text, "voice": voice}, &out); err != nil {
		return nil, err
	}
	if out.Format == "" {
		out.Format = "mp3"
	}
	s.cache.PutJSON(ctx, key, out, s.cacheTTL)
	return &out, nil
}

// GenerateImage returns an image URL or data URI. When an artifact store is
// configured, inline images are uploaded and replaced by the stored URL.
func (s *MediaService) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", common.ErrValidation)
	}
	if req.Size == "" {
		req.Size = "1024x1024"
	}
	if req.Style == "" {
		req.Style = "vivid"
	}
	if req.Quality == "" {
		req.Quality = "standard"
	}

	key := cache.Key("image_gen", req.Prompt, req.Size, req.Style, req.Quality)
	if b, ok := s.cache.Get(ctx, key); ok {
		return string(b), nil
	}
	if err := ratelimit.Enforce(ctx, s.limiter, ratelimit.GlobalIdentity, s.quotas.ImageGen); err != nil {
		return "", err
	}

	var out struct {
		Image string `json:"image"`
	}
	if err := s.client.PostJSON(ctx, "/generate-image", req, &out); err != nil {
		return "", err
	}
	if out.Image == "" {
		return "", fmt.Errorf("%w: %s: empty image", common.ErrUpstreamUnavailable, s.client.Name)
	}

	image := s.store(ctx, out.Image)
	s.cache.Put(ctx, key, []byte(image), s.cacheTTL)
	return image, nil
}

func (s *MediaService) store(ctx context.Context, image string) string {
	if s.artifacts == nil {
		return image
	}
	contentType, data, ok := decodeDataURI(image)
	if !ok {
		return image
	}
	url, err := s.artifacts.PutImage(ctx, data, contentType)
	if err != nil {
		s.log.WithError(err).Warn("media: artifact upload failed, returning inline image")
		return image
	}
	return url
}

func (s *MediaService) AnalyzeImage(ctx context.Context, image string) (string, error) {
	if strings.TrimSpace(image) == "" {
		return "", fmt.Errorf("%w: image is required", common.ErrValidation)
	}

	key := cache.Key("vision", image)
	if b, ok := s.cache.Get(ctx, key); ok {
		return string(b), nil
	}
	if err := ratelimit.Enforce(ctx, s.limiter, ratelimit.GlobalIdentity, s.quotas.Vision); err != nil {
		return "", err
	}

	var out struct {
		Analysis string `json:"analysis"`
	}
	if err := s.client.PostJSON(ctx, "/analyze-image", map[string]string{"image": image}, &out); err != nil {
		return "", err
	}
	s.cache.Put(ctx, key, []byte(out.Analysis), s.cacheTTL)
	return out.Analysis, nil
}

func (s *MediaService) ProcessImage(ctx context.Context, image, operation string) (string, error) {
	if strings.TrimSpace(image) == "" {
		return "", fmt.Errorf("%w: image is required", common.ErrValidation)
	}
	if err := ValidateOperation(operation); err != nil {
		return "", err
	}
	var out struct {
		Image string `json:"image"`
	}
	if err := s.client.PostJSON(ctx, "/process-image", map[string]string{"image": image, "operation": operation}, &out); err != nil {
		return "", err
	}
	return out.Image, nil
}

var (
	resizeOp = regexp.MustCompile(`^resize_([1-9][0-9]{0,4})x([1-9][0-9]{0,4})$`)
	cropOp   = regexp.MustCompile(`^crop_([0-9]{1,5}),([0-9]{1,5}),([0-9]{1,5}),([0-9]{1,5})$`)
)

// ValidateOperation accepts grayscale, thumbnail, resize_WxH and crop_L,T,R,B.
func ValidateOperation(op string) error {
	switch {
	case op == "grayscale", op == "thumbnail":
		return nil
	case resizeOp.MatchString(op):
		return nil
	case cropOp.MatchString(op):
		var l, t, r, b int
		if _, err := fmt.Sscanf(op, "crop_%d,%d,%d,%d", &l, &t, &r, &b); err != nil {
			return fmt.Errorf("%w: unsupported operation: %s", common.ErrValidation, op)
		}
		if r <= l || b <= t {
			return fmt.Errorf("%w: crop box is empty: %s", common.ErrValidation, op)
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported operation: %s", common.ErrValidation, op)
}

func decodeDataURI(s string) (contentType string, data []byte, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(s[len("data:"):], ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return strings.TrimSuffix(meta, ";base64"), data, true
}
