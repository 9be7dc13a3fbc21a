package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testRequest() *transaction.Request {
	return &transaction.Request{
		ProfileID:           42,
		ExternalOperationID: "10000",
		OperationType:       "MailOrder",
		Movements: []transaction.Movement{
			{Order: 1, SubOrder: 1, Destination: transaction.DestinationStripe, Type: transaction.TypeChargeStripeAccount},
			{Order: 2, SubOrder: 1, Destination: transaction.DestinationBalance, Type: transaction.TypeCreditStripeFunds},
		},
	}
}

func TestDeliverer_Deliver(t *testing.T) {
	deliverer := NewDeliverer(newTestLogger())

	t.Run("Success", func(t *testing.T) {
		var received Payload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &received))

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		summary, err := deliverer.Deliver(context.Background(), server.URL, testRequest())
		require.NoError(t, err)

		assert.Equal(t, fmt.Sprintf("Webhook sent successfully to %s. Status: 200", server.URL), summary)
		assert.Equal(t, int64(42), received.ProfileID)
		assert.Equal(t, "10000", received.ExternalOperationID)
		assert.Equal(t, "MailOrder", received.OperationType)
		assert.Equal(t, "Completed", received.Status)
		assert.Equal(t, 2, received.MovementsCount)
		assert.False(t, received.ProcessedAt.IsZero())
	})

	t.Run("Non2xxIsAnError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "receiver unhappy", http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := deliverer.Deliver(context.Background(), server.URL, testRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
		assert.Contains(t, err.Error(), "receiver unhappy")
	})

	t.Run("TransportFailureIsAnError", func(t *testing.T) {
		_, err := deliverer.Deliver(context.Background(), "http://127.0.0.1:1", testRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send webhook")
	})

	t.Run("PayloadUsesCamelCaseKeys", func(t *testing.T) {
		body, err := json.Marshal(Payload{})
		require.NoError(t, err)
		for _, key := range []string{"profileId", "externalOperationId", "operationType", "status", "processedAt", "movementsCount"} {
			assert.Contains(t, string(body), key)
		}
	})
}
