package adapter

import (
	"context"

	"propertyhub-payments/internal/domain/model"
)

// RentRecorder applies the downstream effects of a captured rent payment
// (tenant ledger, receipts). It is owned by the tenant-management module.
type RentRecorder interface {
	RecordRentPayment(ctx context.Context, p *model.Payment) error
}
