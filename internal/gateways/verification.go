package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/pkg/http"
)

// Error taxonomy for provider calls. Transient conditions never surface
// through QueryStatus, see ports.StatusOutcome.
var (
	// ErrProviderUnavailable is returned on network failures and 5xx answers, after transport retries
	ErrProviderUnavailable = errors.New("verification provider unavailable")
	// ErrInvalidSubject is returned on 4xx validation answers to operation creation. Not retryable
	ErrInvalidSubject = errors.New("invalid subject reference")
	// ErrResultNotReady is returned when a result is fetched before the operation is terminal
	ErrResultNotReady = errors.New("operation result not ready")
	// ErrOperationNotFound is returned when a result is fetched for an operation the provider does not know
	ErrOperationNotFound = errors.New("operation not found")
)

type createOperationRequest struct {
	Kind       string `json:"kind"`
	SubjectRef string `json:"subjectRef"`
}

type createOperationResponse struct {
	OperationID string    `json:"operationId"`
	Secret      string    `json:"secret"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type statusResponse struct {
	RemoteStateCode string     `json:"remoteStateCode"`
	ResultCode      int        `json:"resultCode"`
	CompletedAt     *time.Time `json:"completedAt"`
}

// Remote state codes the provider reports before and at terminality
const (
	remoteStateDone = "DONE"
)

// VerificationClient talks to the remote biometric verification provider
type VerificationClient struct {
	conn    *http.Client
	baseURL string
	apiKey  string
}

// NewVerificationClient creates a provider client over the retrying http client
func NewVerificationClient(conn *http.Client, baseURL, apiKey string) ports.VerificationGateway {
	return &VerificationClient{
		conn:    conn,
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// CreateOperation registers a new enrollment or authentication operation with
// the provider
func (c *VerificationClient) CreateOperation(ctx context.Context, kind domain.OperationKind, subjectRef string) (*ports.CreatedOperation, error) {
	reqBody, err := json.Marshal(createOperationRequest{
		Kind:       string(kind),
		SubjectRef: subjectRef,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	status, body, err := c.conn.Do(ctx, nethttp.MethodPost, c.baseURL+"/operations", reqBody, c.headers())
	if err != nil {
		return nil, ErrProviderUnavailable
	}

	switch {
	case status >= nethttp.StatusInternalServerError:
		return nil, ErrProviderUnavailable
	case status >= nethttp.StatusBadRequest:
		return nil, ErrInvalidSubject
	case status != nethttp.StatusOK && status != nethttp.StatusCreated:
		return nil, errors.Wrapf(ErrProviderUnavailable, "unexpected status %d", status)
	}

	var resp createOperationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WithStack(err)
	}
	if resp.OperationID == "" {
		return nil, errors.New("provider returned an empty operation id")
	}

	return &ports.CreatedOperation{
		OperationID: resp.OperationID,
		Secret:      resp.Secret,
		ExpiresAt:   resp.ExpiresAt,
	}, nil
}

// QueryStatus asks the provider for the current remote state of an operation.
// A 404 means the operation is not registered on the provider side yet, which
// is normal for several minutes after creation. It maps to a NotYetQueryable
// outcome and is never an error.
func (c *VerificationClient) QueryStatus(ctx context.Context, operationID string) (*ports.StatusOutcome, error) {
	url := fmt.Sprintf("%s/operations/%s/status", c.baseURL, operationID)
	status, body, err := c.conn.Do(ctx, nethttp.MethodGet, url, nil, c.headers())
	if err != nil {
		return nil, ErrProviderUnavailable
	}

	switch {
	case status == nethttp.StatusNotFound:
		return &ports.StatusOutcome{
			NotYetQueryable: true,
			RemoteState:     domain.RemoteStateNotYetQueryable,
		}, nil
	case status >= nethttp.StatusInternalServerError:
		return nil, ErrProviderUnavailable
	case status != nethttp.StatusOK:
		return nil, errors.Wrapf(ErrProviderUnavailable, "unexpected status %d", status)
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WithStack(err)
	}

	return &ports.StatusOutcome{
		Terminal:    resp.RemoteStateCode == remoteStateDone,
		RemoteState: resp.RemoteStateCode,
		ResultCode:  resp.ResultCode,
		CompletedAt: resp.CompletedAt,
	}, nil
}

// FetchResult retrieves the proof payload of a terminal operation
func (c *VerificationClient) FetchResult(ctx context.Context, operationID string) (*domain.ProofResult, error) {
	url := fmt.Sprintf("%s/operations/%s/result", c.baseURL, operationID)
	status, body, err := c.conn.Do(ctx, nethttp.MethodGet, url, nil, c.headers())
	if err != nil {
		return nil, ErrProviderUnavailable
	}

	switch {
	case status == nethttp.StatusNotFound:
		return nil, ErrOperationNotFound
	case status == nethttp.StatusConflict:
		return nil, ErrResultNotReady
	case status >= nethttp.StatusInternalServerError:
		return nil, ErrProviderUnavailable
	case status != nethttp.StatusOK:
		return nil, errors.Wrapf(ErrProviderUnavailable, "unexpected status %d", status)
	}

	var result domain.ProofResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.WithStack(err)
	}

	return &result, nil
}

func (c *VerificationClient) headers() map[string]string {
	return map[string]string{"X-Api-Key": c.apiKey}
}
