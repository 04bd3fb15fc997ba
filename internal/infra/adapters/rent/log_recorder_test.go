//go:build !integration

package rent

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertyhub-payments/internal/domain/model"
)

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	tenant := "tenant-7"

	r := NewLogRecorder(&logger)
	err := r.RecordRentPayment(context.Background(), &model.Payment{
		ID:              "pay-1",
		OrganizationID:  "org-1",
		TenantID:        &tenant,
		Amount:          decimal.RequireFromString("12500.5"),
		Currency:        "INR",
		TransactionDate: time.Now(),
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rent_payment_captured", line["event"])
	assert.Equal(t, "tenant-7", line["tenant_id"])
	assert.Equal(t, "12500.50", line["amount"])
	assert.Equal(t, "rent_recorder", line["component"])
}
