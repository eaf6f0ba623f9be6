package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
)

// Name is the provider key DashScope is registered under.
const Name = infra.ProviderAliyun

// Options configures the DashScope async image client.
type Options struct {
	APIKey        string
	BaseURL       string
	HTTPClient    *http.Client
	PollClient    *http.Client
	SubmitTimeout time.Duration
	PollTimeout   time.Duration
	Logger        *infra.Logger
}

// Client performs HTTP calls to the DashScope text-to-image task API.
type Client struct {
	apiKey       string
	baseURL      string
	submitClient *http.Client
	pollClient   *http.Client
	logger       *infra.Logger
}

type taskEnvelope struct {
	RequestID  string      `json:"request_id"`
	TaskStatus string      `json:"task_status"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Output     *taskOutput `json:"output"`
	Result     *taskOutput `json:"result"`
}

type taskOutput struct {
	TaskID     string       `json:"task_id"`
	TaskStatus string       `json:"task_status"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Results    []taskResult `json:"results"`
}

type taskResult struct {
	URL     string `json:"url"`
	Seed    *int64 `json:"seed"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
// Submission and status queries use separate HTTP clients so a long submit
// timeout does not leak into polling.
func NewClient(opts Options) *Client {
	submitClient := opts.HTTPClient
	if submitClient == nil {
		timeout := opts.SubmitTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		submitClient = &http.Client{Timeout: timeout}
	}
	pollClient := opts.PollClient
	if pollClient == nil {
		timeout := opts.PollTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		pollClient = &http.Client{Timeout: timeout, Transport: submitClient.Transport}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/api/v1"
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		submitClient: submitClient,
		pollClient:   pollClient,
		logger:       infra.OrNop(opts.Logger),
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateTask submits body in async mode and returns the vendor task id.
func (c *Client) CreateTask(ctx context.Context, endpoint string, body any) (string, error) {
	if !c.HasCredentials() {
		return "", &domain.Error{Kind: domain.ErrMissingCredentials, Provider: Name, Message: "ALIYUN_API_KEY is not configured"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("dashscope: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("dashscope: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-DashScope-Async", "enable")
	req.Header.Set("X-DashScope-DataInspection", "disable")

	var decoded taskEnvelope
	if err := c.do(c.submitClient, req, "", &decoded); err != nil {
		return "", err
	}
	if decoded.Output == nil || strings.TrimSpace(decoded.Output.TaskID) == "" {
		msg := decoded.Message
		if msg == "" {
			msg = "response carried no output.task_id"
		}
		return "", &domain.Error{Kind: domain.ErrSubmissionRejected, Provider: Name, Message: msg}
	}
	taskID := strings.TrimSpace(decoded.Output.TaskID)
	c.logger.Debug().
		Str("provider", Name).
		Str("job_id", taskID).
		Str("request_id", decoded.RequestID).
		Msg("dashscope: task created")
	return taskID, nil
}

// getTask queries the task once.
func (c *Client) getTask(ctx context.Context, taskID string) (*taskEnvelope, error) {
	if !c.HasCredentials() {
		return nil, &domain.Error{Kind: domain.ErrMissingCredentials, Provider: Name, JobID: taskID}
	}
	endpoint := c.baseURL + "/tasks/" + url.PathEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dashscope: build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var decoded taskEnvelope
	if err := c.do(c.pollClient, req, taskID, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func (c *Client) do(client *http.Client, req *http.Request, jobID string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return &domain.Error{Kind: domain.ErrTransport, Provider: Name, JobID: jobID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.Error{Kind: domain.ErrTransport, Provider: Name, JobID: jobID, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			msg = detail.Message
			if detail.Code != "" {
				msg = fmt.Sprintf("%s (%s)", detail.Message, detail.Code)
			}
		}
		return &domain.Error{Kind: domain.ErrTransport, Provider: Name, JobID: jobID, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.Error{Kind: domain.ErrTransport, Provider: Name, JobID: jobID, StatusCode: resp.StatusCode, Message: "undecodable response body", Err: err}
	}
	return nil
}
