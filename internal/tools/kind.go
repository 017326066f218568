package tools

import (
	"github.com/FrK06/web-rag-original/internal/ai"
)

// Kind is the closed set of tools the model may call.
type Kind string

const (
	SearchWeb     Kind = "search_web"
	ScrapeWebpage Kind = "scrape_webpage"
	SendSMS       Kind = "send_sms"
	MakeCall      Kind = "make_call"
	GenerateImage Kind = "generate_image"
	AnalyzeImage  Kind = "analyze_image"
)

// Kinds lists every tool in schema order.
var Kinds = []Kind{SearchWeb, ScrapeWebpage, SendSMS, MakeCall, GenerateImage, AnalyzeImage}

var labels = map[Kind]string{
	SearchWeb:     "web-search",
	ScrapeWebpage: "web-scrape",
	SendSMS:       "sms",
	MakeCall:      "call",
	GenerateImage: "image-generation",
	AnalyzeImage:  "image-analysis",
}

func ParseKind(name string) (Kind, bool) {
	k := Kind(name)
	_, ok := labels[k]
	return k, ok
}

// Label is the name reported in tools_used.
func (k Kind) Label() string { return labels[k] }

var (
	imageSizes  = []string{"1024x1024", "1024x1792", "1792x1024"}
	imageStyles = []string{"vivid", "natural"}
)

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var specs = map[Kind]ai.ToolSpec{
	SearchWeb: {
		Name:        string(SearchWeb),
		Description: "Search the web for current information",
		Parameters: object([]string{"query"}, map[string]any{
			"query": str("The search query"),
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return",
				"default":     5,
			},
		}),
	},
	ScrapeWebpage: {
		Name:        string(ScrapeWebpage),
		Description: "Extract content from a webpage",
		Parameters:  object([]string{"url"}, map[string]any{"url": str("The URL to scrape")}),
	},
	SendSMS: {
		Name:        string(SendSMS),
		Description: "Send an SMS message",
		Parameters: object([]string{"recipient", "message"}, map[string]any{
			"recipient": str("The phone number to send the SMS to"),
			"message":   str("The message to send"),
		}),
	},
	MakeCall: {
		Name:        string(MakeCall),
		Description: "Initiate a phone call",
		Parameters: object([]string{"recipient"}, map[string]any{
			"recipient": str("The phone number to call"),
			"message": map[string]any{
				"type":        "string",
				"description": "The message to convey in the call",
				"default":     "This is an automated call.",
			},
		}),
	},
	GenerateImage: {
		Name:        string(GenerateImage),
		Description: "Generate an image based on a description",
		Parameters: object([]string{"prompt"}, map[string]any{
			"prompt": str("Detailed description of the image to generate"),
			"size": map[string]any{
				"type": "string", "description": "Image size",
				"enum": imageSizes, "default": imageSizes[0],
			},
			"style": map[string]any{
				"type": "string", "description": "Image style",
				"enum": imageStyles, "default": imageStyles[0],
			},
		}),
	},
	AnalyzeImage: {
		Name:        string(AnalyzeImage),
		Description: "Analyze an image and describe its contents",
		Parameters: object([]string{"image_url"}, map[string]any{
			"image_url": str("URL or base64 data of the image to analyze"),
		}),
	},
}

func (k Kind) Spec() ai.ToolSpec { return specs[k] }
