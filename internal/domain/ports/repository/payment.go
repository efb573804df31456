package repository

import (
	"context"

	"telegram-invoicing-bot/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRecord, error)
	FindLatestPending(ctx context.Context, tx Tx, companyID int64) (*model.PaymentRecord, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus) error
}
