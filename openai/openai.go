// Package openai adapts the OpenAI Chat Completions streaming API to
// provider.LanguageModel. Importing the package registers the "openai"
// provider, so models can be resolved with provider.Resolve("openai:gpt-4o").
package openai

import (
	"net/http"
	"sync/atomic"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bitop-dev/aistream/provider"
)

const ProviderName = "openai"

type Config struct {
	// APIKey defaults to the OPENAI_API_KEY environment variable.
	APIKey       string
	BaseURL      string
	Organization string
	Headers      map[string]string
	HTTPClient   *http.Client
}

type Client struct {
	cfg Config
	sdk oai.Client
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		// Failed calls surface to the caller as they are.
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return &Client{cfg: cfg, sdk: oai.NewClient(opts...)}
}

var defaultClient atomic.Pointer[Client]

func init() {
	defaultClient.Store(NewClient(Config{}))
	_ = provider.Register(ProviderName, func(modelID string) (provider.LanguageModel, error) {
		return defaultClient.Load().Chat(modelID), nil
	})
}

// Configure replaces the client used by Chat and by the registered provider.
func Configure(cfg Config) {
	defaultClient.Store(NewClient(cfg))
}

func Chat(modelID string) *ChatModel {
	return defaultClient.Load().Chat(modelID)
}

func (c *Client) Chat(modelID string) *ChatModel {
	return &ChatModel{modelID: modelID, client: c}
}

func (c *Client) Config() Config { return c.cfg }
