package tools

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/FrK06/web-rag-original/internal/common"
)

type SearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type ScrapeArgs struct {
	URL string `json:"url"`
}

// MessageArgs serve both send_sms and make_call.
type MessageArgs struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type ImageArgs struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	Style  string `json:"style"`
}

type AnalyzeArgs struct {
	ImageURL string `json:"image_url"`
}

func decode(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: malformed arguments: %v", common.ErrValidation, err)
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", common.ErrValidation, field)
	}
	return nil
}

func (a *SearchArgs) normalize() error {
	if a.MaxResults <= 0 || a.MaxResults > 10 {
		a.MaxResults = 5
	}
	return required("query", a.Query)
}

func (a *ScrapeArgs) normalize() error { return required("url", a.URL) }

func (a *ImageArgs) normalize() error {
	if a.Size == "" {
		a.Size = imageSizes[0]
	}
	if a.Style == "" {
		a.Style = imageStyles[0]
	}
	if !slices.Contains(imageSizes, a.Size) {
		return fmt.Errorf("%w: unsupported size %q", common.ErrValidation, a.Size)
	}
	if !slices.Contains(imageStyles, a.Style) {
		return fmt.Errorf("%w: unsupported style %q", common.ErrValidation, a.Style)
	}
	return required("prompt", a.Prompt)
}

func (a *AnalyzeArgs) normalize() error { return required("image_url", a.ImageURL) }
