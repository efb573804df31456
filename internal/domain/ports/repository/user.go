package repository

import (
	"context"

	"telegram-invoicing-bot/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.User, error)
	FindByID(ctx context.Context, tx Tx, id int64) (*model.User, error)
}

type CompanyRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Company) error
	// FindByID locks the row when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Company, error)
	ExistsByEmail(ctx context.Context, tx Tx, email string) (bool, error)
	AddClientCount(ctx context.Context, tx Tx, id int64, delta int) error
}
