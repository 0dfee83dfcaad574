// Package registry resolves "vendor:model" identifiers to provider handlers
// and their capability rows. The table is static: adding a vendor or model
// family is a code change, not configuration.
package registry

import (
	"strings"

	"github.com/langpipe/langpipe"
	"github.com/langpipe/langpipe/provider/anthropic"
	"github.com/langpipe/langpipe/provider/google"
	"github.com/langpipe/langpipe/provider/openaicompat"
)

// Vendor names accepted in model identifiers.
const (
	VendorOpenAI     = "openai"
	VendorAnthropic  = "anthropic"
	VendorGoogle     = "google"
	VendorTogether   = "together"
	VendorGroq       = "groq"
	VendorXAI        = "xai"
	VendorFireworks  = "fireworks"
	VendorPerplexity = "perplexity"
	VendorOllama     = "ollama"
	VendorCohere     = "cohere"
)

// modelRow maps a model family (by prefix) to its capabilities. An empty
// prefix is the vendor's wildcard row; vendors without one reject unknown
// models.
type modelRow struct {
	prefix string
	caps   langpipe.Capability
}

// vendorEntry is one vendor in the static table.
type vendorEntry struct {
	// baseURL set means `vendor` speaks the OpenAI-compatible protocol.
	baseURL string
	models  []modelRow
}

var allTools = langpipe.Capability{
	ToolSupport:             true,
	ToolChoiceSupport:       true,
	ParallelToolCallSupport: true,
	StreamToolCallSupport:   true,
}

var noTools = langpipe.Capability{}

var vendors = map[string]vendorEntry{
	VendorOpenAI: {
		baseURL: "https://api.openai.com/v1",
		models: []modelRow{
			{prefix: "gpt-", caps: allTools},
			{prefix: "o1", caps: langpipe.Capability{ToolSupport: true, ToolChoiceSupport: true, StreamToolCallSupport: true}},
			{prefix: "o3", caps: allTools},
			{prefix: "o4", caps: allTools},
			{prefix: "chatgpt-", caps: noTools},
		},
	},
	VendorAnthropic: {
		// Native Messages API handler; tool calls arrive only in buffered
		// responses, so streams with tools are forced buffered upstream.
		models: []modelRow{
			{prefix: "claude-", caps: langpipe.Capability{
				ToolSupport:             true,
				ToolChoiceSupport:       true,
				ParallelToolCallSupport: true,
			}},
		},
	},
	VendorGoogle: {
		models: []modelRow{
			{prefix: "gemini-", caps: langpipe.Capability{
				ToolSupport:             true,
				ToolChoiceSupport:       true,
				ParallelToolCallSupport: true,
				StreamToolCallSupport:   true,
			}},
		},
	},
	VendorTogether: {
		baseURL: "https://api.together.xyz/v1",
		models: []modelRow{
			{prefix: "meta-llama/", caps: langpipe.Capability{ToolSupport: true, ToolChoiceSupport: true, StreamToolCallSupport: true}},
			{prefix: "mistralai/", caps: langpipe.Capability{ToolSupport: true, ToolChoiceSupport: true, StreamToolCallSupport: true}},
			{prefix: "Qwen/", caps: langpipe.Capability{ToolSupport: true, ToolChoiceSupport: true, StreamToolCallSupport: true}},
			{prefix: "", caps: noTools},
		},
	},
	VendorGroq: {
		baseURL: "https://api.groq.com/openai/v1",
		models: []modelRow{
			{prefix: "llama-3.3-", caps: langpipe.Capability{ToolSupport: true, ToolChoiceSupport: true, ParallelToolCallSupport: true, StreamToolCallSupport: true}},
			{prefix: "llama-3.1-", caps: langpipe.Capability{ToolSupport: true, ToolChoiceSupport: true, ParallelToolCallSupport: true, StreamToolCallSupport: true}},
			{prefix: "", caps: noTools},
		},
	},
	VendorXAI: {
		baseURL: "https://api.x.ai/v1",
		models: []modelRow{
			{prefix: "grok-", caps: allTools},
		},
	},
	VendorFireworks: {
		baseURL: "https://api.fireworks.ai/inference/v1",
		models: []modelRow{
			{prefix: "accounts/fireworks/models/llama-", caps: langpipe.Capability{ToolSupport: true, StreamToolCallSupport: true}},
			{prefix: "", caps: noTools},
		},
	},
	VendorPerplexity: {
		baseURL: "https://api.perplexity.ai",
		models: []modelRow{
			{prefix: "", caps: noTools},
		},
	},
	VendorOllama: {
		// Local runtime; any pulled model is accepted. tool_choice and
		// parallel calls are not honored by the runtime, so they are gated
		// off rather than sent and ignored.
		baseURL: "http://localhost:11434/v1",
		models: []modelRow{
			{prefix: "", caps: langpipe.Capability{ToolSupport: true, StreamToolCallSupport: true}},
		},
	},
	VendorCohere: {
		baseURL: "https://api.cohere.ai/compatibility/v1",
		models: []modelRow{
			{prefix: "command-", caps: langpipe.Capability{ToolSupport: true, ToolChoiceSupport: true, StreamToolCallSupport: true}},
			{prefix: "", caps: noTools},
		},
	},
}

// Static is the registry over the built-in vendor table.
type Static struct{}

// Default returns the registry over the built-in vendor table.
func Default() *Static { return &Static{} }

// Resolve splits a "vendor:model" identifier, looks the vendor and model
// family up in the table, and returns a handler factory plus the model's
// capability row.
func (*Static) Resolve(model string) (langpipe.HandlerFactory, langpipe.Capability, error) {
	vendor, name, ok := strings.Cut(model, ":")
	if !ok || vendor == "" || name == "" {
		return nil, langpipe.Capability{}, &langpipe.UnsupportedProviderError{Provider: model}
	}

	entry, known := vendors[vendor]
	if !known {
		return nil, langpipe.Capability{}, &langpipe.UnsupportedProviderError{Provider: vendor}
	}

	caps, found := lookupModel(entry, name)
	if !found {
		return nil, langpipe.Capability{}, &langpipe.UnsupportedModelError{Provider: vendor, Model: name}
	}

	return factory(vendor, entry), caps, nil
}

func lookupModel(entry vendorEntry, name string) (langpipe.Capability, bool) {
	for _, row := range entry.models {
		if row.prefix == "" || strings.HasPrefix(name, row.prefix) {
			return row.caps, true
		}
	}
	return langpipe.Capability{}, false
}

func factory(vendor string, entry vendorEntry) langpipe.HandlerFactory {
	switch vendor {
	case VendorAnthropic:
		return func(apiKey string) langpipe.Handler {
			return anthropic.New(apiKey)
		}
	case VendorGoogle:
		return func(apiKey string) langpipe.Handler {
			return google.New(apiKey)
		}
	default:
		return func(apiKey string) langpipe.Handler {
			return openaicompat.New(vendor, entry.baseURL, apiKey)
		}
	}
}

var _ langpipe.Registry = (*Static)(nil)
