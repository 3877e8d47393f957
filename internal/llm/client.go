package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"servechat/internal/domain"
)

var (
	// ErrEndpointNotConfigured indica que falta endpoint, host o token.
	ErrEndpointNotConfigured = errors.New("serving endpoint not configured")
	// ErrTransient marca fallas que vale la pena reintentar.
	ErrTransient = errors.New("transient serving failure")
)

// ServingClient consulta un endpoint de model serving.
type ServingClient interface {
	Query(ctx context.Context, endpoint string, messages []domain.ChatMessage, opts QueryOptions) (Reply, error)
}

// EndpointLister lista los endpoints del workspace en estado READY.
type EndpointLister interface {
	ListReadyEndpoints(ctx context.Context) ([]string, error)
}

type QueryOptions struct {
	MaxTokens   int
	Temperature float64
}

// Reply es el mensaje del asistente ya normalizado.
type Reply struct {
	Role    string       `json:"role"`
	Content string       `json:"content"`
	Usage   domain.Usage `json:"usage"`
}

// StatusError envuelve una respuesta HTTP >= 400 del endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("serving http error: status=%d body=%s", e.StatusCode, e.Body)
}

// Retryable es true para 429 y 5xx.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *StatusError) Is(target error) bool {
	return target == ErrTransient && e.Retryable()
}

// HTTPClient implementa ServingClient contra /serving-endpoints/{name}/invocations.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye el cliente; baseURL ya viene normalizada desde config.
func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *HTTPClient) configured() bool {
	return c != nil && c.baseURL != "" && c.token != ""
}

func (c *HTTPClient) Query(ctx context.Context, endpoint string, messages []domain.ChatMessage, opts QueryOptions) (Reply, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Reply{}, ErrEndpointNotConfigured
	}
	if !c.configured() {
		return Reply{}, fmt.Errorf("%w: missing host or token", ErrEndpointNotConfigured)
	}

	reqBody := invocationRequest{
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	target := c.baseURL + "/serving-endpoints/" + url.PathEscape(endpoint) + "/invocations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(bodyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		c.logger.Warn("serving call failed", zap.String("endpoint", endpoint), zap.Error(err))
		return Reply{}, err
	}
	return ParseResponse(respBody), nil
}

// ListReadyEndpoints consulta /api/2.0/serving-endpoints y filtra los READY.
func (c *HTTPClient) ListReadyEndpoints(ctx context.Context) ([]string, error) {
	if !c.configured() {
		return nil, ErrEndpointNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/2.0/serving-endpoints", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var lr listResponse
	if err := json.Unmarshal(respBody, &lr); err != nil {
		return nil, fmt.Errorf("unmarshal endpoints: %w", err)
	}
	var names []string
	for _, ep := range lr.Endpoints {
		if ep.Name != "" && endpointReady(ep) {
			names = append(names, ep.Name)
		}
	}
	return names, nil
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, fmt.Errorf("do request: %w", err)
		}
		return nil, fmt.Errorf("do request: %w: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", ErrTransient, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 300)}
	}
	return respBody, nil
}

type invocationRequest struct {
	Messages    []domain.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

type listResponse struct {
	Endpoints []servingEndpoint `json:"endpoints"`
}

type servingEndpoint struct {
	Name  string          `json:"name"`
	State json.RawMessage `json:"state"`
}

// El estado llega como string o como objeto {"ready": "READY", ...}.
func endpointReady(ep servingEndpoint) bool {
	var s string
	if err := json.Unmarshal(ep.State, &s); err == nil {
		return s == "READY"
	}
	var obj struct {
		Ready string `json:"ready"`
	}
	if err := json.Unmarshal(ep.State, &obj); err == nil {
		return obj.Ready == "READY"
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
