// Package anthropic adapts the Anthropic Messages streaming API to
// provider.LanguageModel. Importing the package registers the "anthropic"
// provider.
package anthropic

import (
	"net/http"
	"sync/atomic"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bitop-dev/aistream/provider"
)

const ProviderName = "anthropic"

// DefaultMaxTokens is sent when the request does not set MaxTokens; the
// Messages API requires the field.
const DefaultMaxTokens = 4096

type Config struct {
	// APIKey defaults to the ANTHROPIC_API_KEY environment variable.
	APIKey     string
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
	sdk sdk.Client
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return &Client{cfg: cfg, sdk: sdk.NewClient(opts...)}
}

var defaultClient atomic.Pointer[Client]

func init() {
	defaultClient.Store(NewClient(Config{}))
	_ = provider.Register(ProviderName, func(modelID string) (provider.LanguageModel, error) {
		return defaultClient.Load().Messages(modelID), nil
	})
}

// Configure replaces the client used by Messages and by the registered
// provider.
func Configure(cfg Config) {
	defaultClient.Store(NewClient(cfg))
}

func Messages(modelID string) *MessagesModel {
	return defaultClient.Load().Messages(modelID)
}

func (c *Client) Messages(modelID string) *MessagesModel {
	return &MessagesModel{modelID: modelID, client: c}
}

func (c *Client) Config() Config { return c.cfg }

// Options provides Anthropic-specific request options.
// Use via StreamTextRequest.ProviderOptions: map[string]any{"anthropic": anthropic.Options{...}}.
type Options struct {
	// ThinkingBudget enables extended thinking with the given token budget.
	ThinkingBudget int64 `json:"thinking_budget,omitempty"`
}
