package liblib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
)

// Name is the provider key LiblibAI is registered under.
const Name = infra.ProviderLiblibAI

// Options configures the LiblibAI open API client.
type Options struct {
	AccessKey     string
	SecretKey     string
	BaseURL       string
	HTTPClient    *http.Client
	PollClient    *http.Client
	SubmitTimeout time.Duration
	PollTimeout   time.Duration
	Logger        *infra.Logger
}

// Client performs signed HTTP calls to the LiblibAI generation API.
type Client struct {
	baseURL      string
	signer       *Signer
	submitClient *http.Client
	pollClient   *http.Client
	logger       *infra.Logger
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type submitData struct {
	GenerateUUID string `json:"generateUuid"`
}

type statusData struct {
	GenerateUUID     string        `json:"generateUuid"`
	GenerateStatus   int           `json:"generateStatus"`
	GenerateMsg      string        `json:"generateMsg"`
	PercentCompleted float64       `json:"percentCompleted"`
	PointsCost       float64       `json:"pointsCost"`
	AccountBalance   float64       `json:"accountBalance"`
	Images           []statusImage `json:"images"`
}

type statusImage struct {
	ImageURL    string `json:"imageUrl"`
	Seed        *int64 `json:"seed"`
	AuditStatus *int   `json:"auditStatus"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
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
		baseURL = "https://openapi.liblibai.cloud"
	}
	return &Client{
		baseURL:      baseURL,
		signer:       NewSigner(opts.AccessKey, opts.SecretKey),
		submitClient: submitClient,
		pollClient:   pollClient,
		logger:       infra.OrNop(opts.Logger),
	}
}

// HasCredentials reports whether the client can sign requests.
func (c *Client) HasCredentials() bool {
	return c.signer.HasCredentials()
}

// CreateTask posts body to endpoint and returns the generateUuid.
func (c *Client) CreateTask(ctx context.Context, endpoint string, body any) (string, error) {
	var env envelope
	if err := c.post(ctx, c.submitClient, endpoint, "", body, &env); err != nil {
		return "", err
	}
	if env.Code != 0 {
		return "", &domain.Error{
			Kind:     domain.ErrSubmissionRejected,
			Provider: Name,
			Message:  orDefault(env.Msg, fmt.Sprintf("code %d", env.Code)),
		}
	}
	var data submitData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", &domain.Error{Kind: domain.ErrSubmissionRejected, Provider: Name, Message: "undecodable data", Err: err}
		}
	}
	id := strings.TrimSpace(data.GenerateUUID)
	if id == "" {
		return "", &domain.Error{Kind: domain.ErrSubmissionRejected, Provider: Name, Message: "response carried no data.generateUuid"}
	}
	c.logger.Debug().Str("provider", Name).Str("job_id", id).Str("endpoint", endpoint).Msg("liblib: task created")
	return id, nil
}

func (c *Client) queryStatus(ctx context.Context, generateUUID string) (*statusData, error) {
	var env envelope
	payload := map[string]string{"generateUuid": generateUUID}
	if err := c.post(ctx, c.pollClient, statusEndpoint, generateUUID, payload, &env); err != nil {
		return nil, err
	}
	if env.Code != 0 {
		return nil, &domain.Error{
			Kind:     domain.ErrVendorFailure,
			Provider: Name,
			JobID:    generateUUID,
			Message:  orDefault(env.Msg, fmt.Sprintf("code %d", env.Code)),
		}
	}
	var data statusData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &domain.Error{Kind: domain.ErrTransport, Provider: Name, JobID: generateUUID, Message: "undecodable status data", Err: err}
		}
	}
	return &data, nil
}

// post signs endpoint, sends body as JSON and decodes the reply envelope.
func (c *Client) post(ctx context.Context, client *http.Client, endpoint, jobID string, body any, out *envelope) error {
	sig, err := c.signer.Sign(endpoint)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("liblib: encode request: %w", err)
	}
	target := c.baseURL + endpoint + "?" + sig.Query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("liblib: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
		var detail envelope
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Msg != "" {
			msg = detail.Msg
		}
		return &domain.Error{Kind: domain.ErrTransport, Provider: Name, JobID: jobID, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.Error{Kind: domain.ErrTransport, Provider: Name, JobID: jobID, StatusCode: resp.StatusCode, Message: "undecodable response body", Err: err}
	}
	return nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
