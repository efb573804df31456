package repository

import (
	"context"

	"telegram-invoicing-bot/internal/domain/model"
)

// ClientRepository methods are always scoped by company; a row of another tenant is ErrNotFound.
type ClientRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Client) error
	FindByID(ctx context.Context, tx Tx, companyID, id int64) (*model.Client, error)
	// ExistsByName ignores case; excludeID skips the record being edited.
	ExistsByName(ctx context.Context, tx Tx, companyID int64, name string, excludeID int64) (bool, error)
	List(ctx context.Context, tx Tx, companyID int64, limit int) ([]*model.Client, error)
	Search(ctx context.Context, tx Tx, companyID int64, query string, limit int) ([]*model.Client, error)
	Delete(ctx context.Context, tx Tx, companyID, id int64) error
}

type ArticleRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Article) error
	// FindByID locks the row when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, companyID, id int64) (*model.Article, error)
	ExistsByName(ctx context.Context, tx Tx, companyID int64, name string, excludeID int64) (bool, error)
	List(ctx context.Context, tx Tx, companyID int64, limit int) ([]*model.Article, error)
	Search(ctx context.Context, tx Tx, companyID int64, query string, limit int) ([]*model.Article, error)
	Delete(ctx context.Context, tx Tx, companyID, id int64) error
}

type MovementRepository interface {
	Save(ctx context.Context, tx Tx, m *model.Movement) error
	ListByArticle(ctx context.Context, tx Tx, articleID int64, limit int) ([]*model.Movement, error)
	DeleteByArticle(ctx context.Context, tx Tx, articleID int64) error
}
