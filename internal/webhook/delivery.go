// Package webhook delivers the completion callback to the URL supplied with
// the transaction request.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

// Payload is the JSON body posted to the callback URL
type Payload struct {
	ProfileID           int64     `json:"profileId"`
	ExternalOperationID string    `json:"externalOperationId"`
	OperationType       string    `json:"operationType"`
	Status              string    `json:"status"`
	ProcessedAt         time.Time `json:"processedAt"`
	MovementsCount      int       `json:"movementsCount"`
}

// Deliverer posts completion webhooks over HTTP. Non-2xx responses and
// transport failures are returned as errors so the retry coordinator can
// apply the webhook policy.
type Deliverer struct {
	client *http.Client
	logger *slog.Logger
}

// NewDeliverer creates a webhook deliverer. The client timeout stays below
// the per-attempt retry timeout so each attempt fails fast enough to retry.
func NewDeliverer(logger *slog.Logger) *Deliverer {
	return &Deliverer{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Deliver posts the completion payload and returns a summary of the HTTP
// outcome.
func (d *Deliverer) Deliver(ctx context.Context, callbackURL string, req *transaction.Request) (string, error) {
	payload := Payload{
		ProfileID:           req.ProfileID,
		ExternalOperationID: req.ExternalOperationID,
		OperationType:       req.OperationType,
		Status:              "Completed",
		ProcessedAt:         time.Now().UTC(),
		MovementsCount:      len(req.Movements),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.Error("Webhook request failed", "callback_url", callbackURL, "error", err)
		return "", fmt.Errorf("failed to send webhook to %s: %w", callbackURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		d.logger.Warn("Webhook rejected",
			"callback_url", callbackURL,
			"status", resp.StatusCode,
			"response", string(respBody),
		)
		return "", fmt.Errorf("webhook to %s failed with status %d: %s", callbackURL, resp.StatusCode, string(respBody))
	}

	d.logger.Info("Webhook delivered", "callback_url", callbackURL, "status", resp.StatusCode)
	return fmt.Sprintf("Webhook sent successfully to %s. Status: %d", callbackURL, resp.StatusCode), nil
}
