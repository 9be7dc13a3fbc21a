package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

// HTTPService implements RemoteService against the transaction domain's
// HTTP API: start via POST, await via polling the saga's durable state
// until it turns terminal.
type HTTPService struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewHTTPService creates an HTTP-backed remote saga service
func NewHTTPService(baseURL string, pollInterval time.Duration, logger *slog.Logger) *HTTPService {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &HTTPService{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: pollInterval,
		logger:       logger,
	}
}

type startResponse struct {
	Data struct {
		WorkflowID string `json:"workflow_id"`
		RunID      string `json:"run_id"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type statusResponse struct {
	Data struct {
		ID     string     `json:"id"`
		State  saga.State `json:"state"`
		Result string     `json:"result"`
	} `json:"data"`
}

// Start posts the transaction request to the remote domain. A 409 means
// the deterministic saga id already exists there.
func (s *HTTPService) Start(ctx context.Context, req *transaction.Request) (Handle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to marshal transaction request: %w", err)
	}

	url := s.baseURL + "/v1/transactions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Handle{}, fmt.Errorf("failed to build start request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Handle{}, fmt.Errorf("remote saga endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Handle{}, fmt.Errorf("failed to read start response: %w", err)
	}

	var parsed startResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Handle{}, fmt.Errorf("failed to decode start response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return Handle{SagaID: parsed.Data.WorkflowID, RunID: parsed.Data.RunID}, nil
	case http.StatusConflict:
		id := saga.InstanceID(req.OperationType, req.ExternalOperationID)
		return Handle{}, saga.ErrDuplicateInstance{ID: id}
	default:
		message := ""
		if parsed.Error != nil {
			message = parsed.Error.Message
		}
		return Handle{}, fmt.Errorf("remote saga start failed with status %d: %s", resp.StatusCode, message)
	}
}

// AwaitResult polls the remote saga's state until it is terminal and
// returns its result string. The caller's context bounds the wait.
func (s *HTTPService) AwaitResult(ctx context.Context, handle Handle) (string, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	url := fmt.Sprintf("%s/v1/transactions/%s", s.baseURL, handle.SagaID)
	for {
		status, err := s.fetchStatus(ctx, url)
		if err != nil {
			return "", err
		}
		if status.Data.State.IsTerminal() {
			return status.Data.Result, nil
		}

		s.logger.Debug("Remote saga not terminal yet", "saga_id", handle.SagaID, "state", status.Data.State)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *HTTPService) fetchStatus(ctx context.Context, url string) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remote saga status unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote saga status failed with status %d", resp.StatusCode)
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &parsed, nil
}
