package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, COALESCE(company_id, 0), role, telegram_id, name, email`

func (r *UserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	var companyID *int64
	if u.CompanyID != 0 {
		companyID = &u.CompanyID
	}
	if u.ID == 0 {
		const q = `
INSERT INTO users (company_id, role, telegram_id, name, email)
VALUES ($1,$2,$3,$4,$5)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, q, companyID, u.Role, u.TelegramID, u.Name, u.Email)
		if err != nil {
			return err
		}
		return opErr(row.Scan(&u.ID))
	}
	const q = `UPDATE users SET company_id=$2, role=$3, telegram_id=$4, name=$5, email=$6 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, companyID, u.Role, u.TelegramID, u.Name, u.Email)
	return opErr(err)
}

func (r *UserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE telegram_id=$1;`, tgID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *UserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.CompanyID, &u.Role, &u.TelegramID, &u.Name, &u.Email); err != nil {
		return nil, scanErr(err)
	}
	return &u, nil
}

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

type CompanyRepo struct {
	pool *pgxpool.Pool
}

func NewCompanyRepo(pool *pgxpool.Pool) *CompanyRepo {
	return &CompanyRepo{pool: pool}
}

const companyColumns = `id, name, email, description, phone, website, address, plan, plan_status, is_active,
       plan_start, plan_end, client_count, owner_telegram_id, created_at`

func (r *CompanyRepo) Save(ctx context.Context, tx repository.Tx, c *model.Company) error {
	if c.ID == 0 {
		const q = `
INSERT INTO companies (
  name, email, description, phone, website, address, plan, plan_status, is_active,
  plan_start, plan_end, client_count, owner_telegram_id, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, q, c.Name, c.Email, c.Description, c.Phone, c.Website, c.Address,
			c.Plan, c.PlanStatus, c.IsActive, c.PlanStart, c.PlanEnd, c.ClientCount, c.OwnerTelegramID, c.CreatedAt)
		if err != nil {
			return err
		}
		return opErr(row.Scan(&c.ID))
	}
	const q = `
UPDATE companies SET
  name=$2, email=$3, description=$4, phone=$5, website=$6, address=$7, plan=$8, plan_status=$9,
  is_active=$10, plan_start=$11, plan_end=$12
WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.Name, c.Email, c.Description, c.Phone, c.Website, c.Address,
		c.Plan, c.PlanStatus, c.IsActive, c.PlanStart, c.PlanEnd)
	return opErr(err)
}

func (r *CompanyRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Company, error) {
	q := `SELECT ` + companyColumns + ` FROM companies WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	var c model.Company
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Description, &c.Phone, &c.Website, &c.Address, &c.Plan,
		&c.PlanStatus, &c.IsActive, &c.PlanStart, &c.PlanEnd, &c.ClientCount, &c.OwnerTelegramID, &c.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &c, nil
}

func (r *CompanyRepo) ExistsByEmail(ctx context.Context, tx repository.Tx, email string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM companies WHERE LOWER(email)=LOWER($1));`, email)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

// AddClientCount is a relative update so concurrent writers never lose increments.
func (r *CompanyRepo) AddClientCount(ctx context.Context, tx repository.Tx, id int64, delta int) error {
	const q = `UPDATE companies SET client_count = GREATEST(client_count + $2, 0) WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, delta)
	if err != nil {
		return opErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
