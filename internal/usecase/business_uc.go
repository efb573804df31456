package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/domain/ports/repository"
	"telegram-invoicing-bot/internal/infra/logging"
	"telegram-invoicing-bot/internal/infra/metrics"
)

// Compile-time check
var _ adapter.BusinessAPI = (*BusinessUseCase)(nil)

// Repositories groups the stores the business backend writes to.
type Repositories struct {
	Users     repository.UserRepository
	Companies repository.CompanyRepository
	Clients   repository.ClientRepository
	Articles  repository.ArticleRepository
	Movements repository.MovementRepository
	Payments  repository.PaymentRepository
}

// BusinessUseCase serves the BusinessAPI port directly from the database.
type BusinessUseCase struct {
	repos  Repositories
	tm     repository.TransactionManager
	prices map[model.PlanTier]int64
	loc    *time.Location
	now    func() time.Time
	log    *zerolog.Logger
}

func NewBusinessUseCase(repos Repositories, tm repository.TransactionManager, prices map[string]int64, loc *time.Location, logger *zerolog.Logger) *BusinessUseCase {
	p := make(map[model.PlanTier]int64, len(prices))
	for name, price := range prices {
		if tier, err := model.ParsePlanTier(name); err == nil {
			p[tier] = price
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BusinessUseCase{repos: repos, tm: tm, prices: p, loc: loc, now: time.Now, log: logger}
}

// WithClock replaces the time source; used by tests.
func (u *BusinessUseCase) WithClock(now func() time.Time) *BusinessUseCase {
	u.now = now
	return u
}

var (
	serializable  = pgx.TxOptions{IsoLevel: pgx.Serializable}
	readCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
)

// newReference builds a short human reference such as CLI-01HV7K2M.
func newReference(prefix string) string {
	id := ulid.Make().String()
	return prefix + "-" + id[len(id)-8:]
}

// -----------------------------
// Users & companies
// -----------------------------

func (u *BusinessUseCase) FindUserByPlatformID(ctx context.Context, telegramID int64) (user *model.User, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.FindUserByPlatformID")()
	defer metrics.ObserveBusinessCall("postgres", "find_user", time.Now(), &err)
	return u.repos.Users.FindByTelegramID(ctx, repository.NoTX, telegramID)
}

func (u *BusinessUseCase) GetCompany(ctx context.Context, companyID int64) (c *model.Company, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.GetCompany")()
	defer metrics.ObserveBusinessCall("postgres", "get_company", time.Now(), &err)
	return u.repos.Companies.FindByID(ctx, repository.NoTX, companyID)
}

func (u *BusinessUseCase) CreateCompany(ctx context.Context, d model.CompanyDraft) (company *model.Company, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.CreateCompany")()
	defer metrics.ObserveBusinessCall("postgres", "create_company", time.Now(), &err)

	err = u.tm.WithTx(ctx, serializable, func(ctx context.Context, tx repository.Tx) error {
		owner, err := u.repos.Users.FindByTelegramID(ctx, tx, d.OwnerTelegramID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if owner.HasCompany() {
			return domain.ErrCompanyExists
		}
		taken, err := u.repos.Companies.ExistsByEmail(ctx, tx, d.Email)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("company email %s: %w", d.Email, domain.ErrAlreadyExists)
		}

		c := &model.Company{
			Name:            d.Name,
			Email:           d.Email,
			Description:     d.Description,
			Phone:           d.Phone,
			Website:         d.Website,
			Address:         d.Address,
			Plan:            d.Plan,
			PlanStatus:      d.PlanStatus,
			IsActive:        d.IsActive,
			PlanStart:       d.PlanStart,
			PlanEnd:         d.PlanEnd,
			OwnerTelegramID: d.OwnerTelegramID,
			CreatedAt:       u.now(),
		}
		if err := u.repos.Companies.Save(ctx, tx, c); err != nil {
			return err
		}

		if owner == nil {
			name := d.OwnerUsername
			if name == "" {
				name = d.Name
			}
			owner = &model.User{TelegramID: d.OwnerTelegramID, Name: name, Email: d.Email}
		}
		owner.CompanyID = c.ID
		owner.Role = model.RoleAdmin
		if err := u.repos.Users.Save(ctx, tx, owner); err != nil {
			return err
		}
		company = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Int64("company_id", company.ID).Str("plan", string(company.Plan)).Msg("company created")
	return company, nil
}

func (u *BusinessUseCase) ActivateCompany(ctx context.Context, companyID int64) (company *model.Company, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.ActivateCompany")()
	defer metrics.ObserveBusinessCall("postgres", "activate_company", time.Now(), &err)

	err = u.tm.WithTx(ctx, serializable, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.repos.Companies.FindByID(ctx, tx, companyID)
		if err != nil {
			return err
		}
		p, err := u.repos.Payments.FindLatestPending(ctx, tx, companyID)
		if err != nil {
			return err
		}

		now := u.now().In(u.loc)
		start, end := model.PlanPeriod(now)
		// a renewal of a running plan extends it
		if p.Submission.Intent.Action == model.PaymentActionRenew && c.PlanEnd != nil && c.PlanEnd.After(now) {
			start = *c.PlanEnd
			end = start.AddDate(0, 1, 0)
		}

		c.Plan = p.Submission.Intent.Plan
		c.PlanStatus = model.PlanStatusActive
		c.IsActive = true
		c.PlanStart = &start
		c.PlanEnd = &end
		if err := u.repos.Companies.Save(ctx, tx, c); err != nil {
			return err
		}
		if err := u.repos.Payments.UpdateStatus(ctx, tx, p.ID, model.PaymentStatusApproved); err != nil {
			return err
		}
		company = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

// -----------------------------
// Clients
// -----------------------------

func (u *BusinessUseCase) CreateClient(ctx context.Context, companyID, userID int64, d model.ClientDraft) (client *model.Client, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.CreateClient")()
	defer metrics.ObserveBusinessCall("postgres", "create_client", time.Now(), &err)

	err = u.tm.WithTx(ctx, serializable, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.repos.Companies.FindByID(ctx, tx, companyID)
		if err != nil {
			return err
		}
		if !c.Plan.Limits().AllowsClient(c.ClientCount) {
			return domain.ErrLimitExceeded
		}
		dup, err := u.repos.Clients.ExistsByName(ctx, tx, companyID, d.Name, 0)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("client %q: %w", d.Name, domain.ErrAlreadyExists)
		}

		cl := &model.Client{
			CompanyID: companyID,
			UserID:    userID,
			Reference: newReference("CLI"),
			Name:      d.Name,
			Phone:     d.Phone,
			Email:     d.Email,
			Address:   d.Address,
			CreatedAt: u.now(),
		}
		if err := u.repos.Clients.Save(ctx, tx, cl); err != nil {
			return err
		}
		if err := u.repos.Companies.AddClientCount(ctx, tx, companyID, 1); err != nil {
			return err
		}
		client = cl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (u *BusinessUseCase) GetClient(ctx context.Context, companyID, id int64) (c *model.Client, err error) {
	defer metrics.ObserveBusinessCall("postgres", "get_client", time.Now(), &err)
	return u.repos.Clients.FindByID(ctx, repository.NoTX, companyID, id)
}

func (u *BusinessUseCase) ListClients(ctx context.Context, companyID int64, limit int) (cs []*model.Client, err error) {
	defer metrics.ObserveBusinessCall("postgres", "list_clients", time.Now(), &err)
	return u.repos.Clients.List(ctx, repository.NoTX, companyID, limit)
}

func (u *BusinessUseCase) SearchClients(ctx context.Context, companyID int64, query string, limit int) (cs []*model.Client, err error) {
	defer metrics.ObserveBusinessCall("postgres", "search_clients", time.Now(), &err)
	return u.repos.Clients.Search(ctx, repository.NoTX, companyID, strings.TrimSpace(query), limit)
}

func (u *BusinessUseCase) UpdateClientField(ctx context.Context, companyID, id int64, field, value string) (client *model.Client, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.UpdateClientField")()
	defer metrics.ObserveBusinessCall("postgres", "update_client", time.Now(), &err)

	err = u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.repos.Clients.FindByID(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if field == model.ClientFieldName {
			dup, err := u.repos.Clients.ExistsByName(ctx, tx, companyID, value, id)
			if err != nil {
				return err
			}
			if dup {
				return fmt.Errorf("client %q: %w", value, domain.ErrAlreadyExists)
			}
		}
		if !c.SetField(field, value) {
			return fmt.Errorf("client field %q: %w", field, domain.ErrInvalidArgument)
		}
		if err := u.repos.Clients.Save(ctx, tx, c); err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (u *BusinessUseCase) DeleteClient(ctx context.Context, companyID, id int64) (err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.DeleteClient")()
	defer metrics.ObserveBusinessCall("postgres", "delete_client", time.Now(), &err)

	return u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.repos.Clients.FindByID(ctx, tx, companyID, id); err != nil {
			return err
		}
		if err := u.repos.Clients.Delete(ctx, tx, companyID, id); err != nil {
			return err
		}
		return u.repos.Companies.AddClientCount(ctx, tx, companyID, -1)
	})
}

// -----------------------------
// Articles & stock
// -----------------------------

func (u *BusinessUseCase) CreateArticle(ctx context.Context, companyID, userID int64, d model.ArticleDraft) (article *model.Article, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.CreateArticle")()
	defer metrics.ObserveBusinessCall("postgres", "create_article", time.Now(), &err)

	err = u.tm.WithTx(ctx, serializable, func(ctx context.Context, tx repository.Tx) error {
		dup, err := u.repos.Articles.ExistsByName(ctx, tx, companyID, d.Name, 0)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("article %q: %w", d.Name, domain.ErrAlreadyExists)
		}

		now := u.now()
		a := &model.Article{
			CompanyID: companyID,
			UserID:    userID,
			Reference: newReference("ART"),
			Name:      d.Name,
			Price:     d.Price,
			Stock:     d.Stock,
			Unit:      d.Unit,
			TVA:       d.TVA,
			Source:    d.Source,
			CreatedAt: now,
		}
		if err := u.repos.Articles.Save(ctx, tx, a); err != nil {
			return err
		}
		if a.Stock > 0 {
			m := &model.Movement{ArticleID: a.ID, UserID: userID, Type: model.MovementEntry, Quantity: a.Stock, Date: now}
			if err := u.repos.Movements.Save(ctx, tx, m); err != nil {
				return err
			}
		}
		article = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if article.Stock > 0 {
		metrics.IncStockMovement(string(model.MovementEntry))
	}
	return article, nil
}

func (u *BusinessUseCase) GetArticle(ctx context.Context, companyID, id int64) (a *model.Article, err error) {
	defer metrics.ObserveBusinessCall("postgres", "get_article", time.Now(), &err)
	return u.repos.Articles.FindByID(ctx, repository.NoTX, companyID, id)
}

func (u *BusinessUseCase) ListArticles(ctx context.Context, companyID int64, limit int) (as []*model.Article, err error) {
	defer metrics.ObserveBusinessCall("postgres", "list_articles", time.Now(), &err)
	return u.repos.Articles.List(ctx, repository.NoTX, companyID, limit)
}

func (u *BusinessUseCase) SearchArticles(ctx context.Context, companyID int64, query string, limit int) (as []*model.Article, err error) {
	defer metrics.ObserveBusinessCall("postgres", "search_articles", time.Now(), &err)
	return u.repos.Articles.Search(ctx, repository.NoTX, companyID, strings.TrimSpace(query), limit)
}

func (u *BusinessUseCase) UpdateArticleField(ctx context.Context, companyID, id int64, field, value string) (article *model.Article, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.UpdateArticleField")()
	defer metrics.ObserveBusinessCall("postgres", "update_article", time.Now(), &err)

	err = u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		a, err := u.repos.Articles.FindByID(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if field == model.ArticleFieldName {
			dup, err := u.repos.Articles.ExistsByName(ctx, tx, companyID, value, id)
			if err != nil {
				return err
			}
			if dup {
				return fmt.Errorf("article %q: %w", value, domain.ErrAlreadyExists)
			}
		}
		if !a.SetField(field, value) {
			return fmt.Errorf("article field %q: %w", field, domain.ErrInvalidArgument)
		}
		if err := u.repos.Articles.Save(ctx, tx, a); err != nil {
			return err
		}
		article = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return article, nil
}

func (u *BusinessUseCase) AdjustArticleStock(ctx context.Context, companyID, id, userID int64, op model.StockOp, qty int64) (article *model.Article, change model.StockChange, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.AdjustArticleStock")()
	defer metrics.ObserveBusinessCall("postgres", "adjust_stock", time.Now(), &err)

	err = u.tm.WithTx(ctx, serializable, func(ctx context.Context, tx repository.Tx) error {
		a, err := u.repos.Articles.FindByID(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		next, err := model.ApplyStockOp(a.Stock, op, qty)
		if err != nil {
			return err
		}

		m := &model.Movement{ArticleID: a.ID, UserID: userID, Type: op.MovementType(), Quantity: qty, Date: u.now()}
		old := a.Stock
		a.Stock = next
		if err := u.repos.Articles.Save(ctx, tx, a); err != nil {
			return err
		}
		if err := u.repos.Movements.Save(ctx, tx, m); err != nil {
			return err
		}
		article = a
		change = model.StockChange{Old: old, New: next, Movement: *m}
		return nil
	})
	if err != nil {
		return nil, model.StockChange{}, err
	}
	metrics.IncStockMovement(string(change.Movement.Type))
	return article, change, nil
}

func (u *BusinessUseCase) RecordMovement(ctx context.Context, companyID, articleID, userID int64, t model.MovementType, qty int64) (*model.Movement, error) {
	op, err := model.StockOpFor(t)
	if err != nil {
		return nil, err
	}
	_, change, err := u.AdjustArticleStock(ctx, companyID, articleID, userID, op, qty)
	if err != nil {
		return nil, err
	}
	return &change.Movement, nil
}

func (u *BusinessUseCase) ListMovements(ctx context.Context, companyID, articleID int64, limit int) (ms []*model.Movement, err error) {
	defer metrics.ObserveBusinessCall("postgres", "list_movements", time.Now(), &err)
	if _, err := u.repos.Articles.FindByID(ctx, repository.NoTX, companyID, articleID); err != nil {
		return nil, err
	}
	return u.repos.Movements.ListByArticle(ctx, repository.NoTX, articleID, limit)
}

func (u *BusinessUseCase) DeleteArticle(ctx context.Context, companyID, id int64) (err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.DeleteArticle")()
	defer metrics.ObserveBusinessCall("postgres", "delete_article", time.Now(), &err)

	return u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.repos.Articles.FindByID(ctx, tx, companyID, id); err != nil {
			return err
		}
		if err := u.repos.Movements.DeleteByArticle(ctx, tx, id); err != nil {
			return err
		}
		return u.repos.Articles.Delete(ctx, tx, companyID, id)
	})
}

// -----------------------------
// Plans & payments
// -----------------------------

func (u *BusinessUseCase) GetPlanPrice(_ context.Context, plan model.PlanTier) (int64, error) {
	if plan == model.PlanFree {
		return 0, nil
	}
	price, ok := u.prices[plan]
	if !ok {
		return 0, fmt.Errorf("price of plan %q: %w", plan, domain.ErrNotFound)
	}
	return price, nil
}

func (u *BusinessUseCase) SubmitPaymentProof(ctx context.Context, s model.PaymentSubmission) (record *model.PaymentRecord, err error) {
	defer logging.TraceDuration(u.log, "BusinessUC.SubmitPaymentProof")()
	defer metrics.ObserveBusinessCall("postgres", "submit_payment", time.Now(), &err)

	if !s.Intent.Valid() {
		return nil, fmt.Errorf("payment intent %+v: %w", s.Intent, domain.ErrInvalidArgument)
	}

	err = u.tm.WithTx(ctx, serializable, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.repos.Companies.FindByID(ctx, tx, s.CompanyID)
		if err != nil {
			return err
		}
		r := &model.PaymentRecord{
			ID:          uuid.NewString(),
			Submission:  s,
			Status:      model.PaymentStatusPendingReview,
			SubmittedAt: u.now(),
		}
		if err := u.repos.Payments.Save(ctx, tx, r); err != nil {
			return err
		}
		c.PlanStatus = model.PlanStatusPendingReview
		if err := u.repos.Companies.Save(ctx, tx, c); err != nil {
			return err
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
