package adapter

import (
	"context"

	"telegram-invoicing-bot/internal/domain/model"
)

// BusinessAPI is the collaborator owning tenants, clients, articles and payments.
// Lookups return domain.ErrNotFound for missing or foreign records; call failures
// and timeouts wrap domain.ErrTransport.
type BusinessAPI interface {
	FindUserByPlatformID(ctx context.Context, telegramID int64) (*model.User, error)
	GetCompany(ctx context.Context, companyID int64) (*model.Company, error)
	// CreateCompany also creates the admin user linked to the owner's Telegram account.
	CreateCompany(ctx context.Context, d model.CompanyDraft) (*model.Company, error)
	// ActivateCompany applies the latest pending payment of the company.
	ActivateCompany(ctx context.Context, companyID int64) (*model.Company, error)

	CreateClient(ctx context.Context, companyID, userID int64, d model.ClientDraft) (*model.Client, error)
	GetClient(ctx context.Context, companyID, id int64) (*model.Client, error)
	ListClients(ctx context.Context, companyID int64, limit int) ([]*model.Client, error)
	SearchClients(ctx context.Context, companyID int64, query string, limit int) ([]*model.Client, error)
	UpdateClientField(ctx context.Context, companyID, id int64, field, value string) (*model.Client, error)
	DeleteClient(ctx context.Context, companyID, id int64) error

	CreateArticle(ctx context.Context, companyID, userID int64, d model.ArticleDraft) (*model.Article, error)
	GetArticle(ctx context.Context, companyID, id int64) (*model.Article, error)
	ListArticles(ctx context.Context, companyID int64, limit int) ([]*model.Article, error)
	SearchArticles(ctx context.Context, companyID int64, query string, limit int) ([]*model.Article, error)
	UpdateArticleField(ctx context.Context, companyID, id int64, field, value string) (*model.Article, error)
	// AdjustArticleStock updates the stock and writes the movement atomically.
	AdjustArticleStock(ctx context.Context, companyID, id, userID int64, op model.StockOp, qty int64) (*model.Article, model.StockChange, error)
	// RecordMovement applies a movement of type t the way the matching stock operation does.
	RecordMovement(ctx context.Context, companyID, articleID, userID int64, t model.MovementType, qty int64) (*model.Movement, error)
	ListMovements(ctx context.Context, companyID, articleID int64, limit int) ([]*model.Movement, error)
	// DeleteArticle removes the article with its movement history.
	DeleteArticle(ctx context.Context, companyID, id int64) error

	GetPlanPrice(ctx context.Context, plan model.PlanTier) (int64, error)
	// SubmitPaymentProof records the proof and parks the company in pending review.
	SubmitPaymentProof(ctx context.Context, s model.PaymentSubmission) (*model.PaymentRecord, error)
}
