// Package foundry talks to a hosted agent project over its OpenAI-compatible
// REST surface. Client implements interfaces.AgentService on the assistants,
// threads, runs and run steps endpoints; ResponsesClient drives the newer
// responses and conversations endpoints used by prompt agents.
package foundry

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/logging"
)

// DefaultAPIVersion is sent as the api-version query parameter
const DefaultAPIVersion = "2025-05-01"

// ErrMissingEndpoint is returned by New when no endpoint is given
var ErrMissingEndpoint = errors.New("foundry: project endpoint is required")

// Client implements interfaces.AgentService
type Client struct {
	client     openai.Client
	endpoint   string
	apiVersion string
	logger     logging.Logger
	reqOpts    []option.RequestOption
}

var _ interfaces.AgentService = (*Client)(nil)

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	apiKey     string
	apiVersion string
	httpClient *http.Client
	maxRetries int
	logger     logging.Logger
	extra      []option.RequestOption
}

// WithAPIKey authenticates with a project API key
func WithAPIKey(key string) Option {
	return func(o *clientOptions) {
		o.apiKey = key
	}
}

// WithAPIVersion overrides the api-version query parameter
func WithAPIVersion(version string) Option {
	return func(o *clientOptions) {
		o.apiVersion = version
	}
}

// WithHTTPClient sets the HTTP client, e.g. one returned by CredentialsHTTPClient
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// WithMaxRetries sets how often the SDK retries transient HTTP failures
func WithMaxRetries(n int) Option {
	return func(o *clientOptions) {
		o.maxRetries = n
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithRequestOptions appends raw SDK request options to every call
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *clientOptions) {
		o.extra = append(o.extra, opts...)
	}
}

// New creates a Client for a project endpoint such as
// https://<resource>.services.ai.azure.com/api/projects/<project>.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	o := clientOptions{
		apiVersion: DefaultAPIVersion,
		maxRetries: 2,
		logger:     logging.NoOp(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := o.requestOptions(endpoint)

	return &Client{
		client:     openai.NewClient(reqOpts...),
		endpoint:   endpoint,
		apiVersion: o.apiVersion,
		logger:     o.logger,
		reqOpts:    reqOpts,
	}, nil
}

func (o clientOptions) requestOptions(baseURL string) []option.RequestOption {
	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.apiVersion != "" {
		reqOpts = append(reqOpts, option.WithQuery("api-version", o.apiVersion))
	}
	if o.apiKey != "" {
		reqOpts = append(reqOpts, option.WithHeader("api-key", o.apiKey))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	return append(reqOpts, o.extra...)
}

// Endpoint returns the project endpoint
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Responses returns a ResponsesClient sharing this client's credentials. The
// responses and conversations endpoints live under the project's /openai path.
func (c *Client) Responses() *ResponsesClient {
	opts := make([]option.RequestOption, 0, len(c.reqOpts)+1)
	opts = append(opts, c.reqOpts...)
	opts = append(opts, option.WithBaseURL(c.endpoint+"/openai"))
	return &ResponsesClient{
		client: openai.NewClient(opts...),
		logger: c.logger,
	}
}
