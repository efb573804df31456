package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/repository"
)

var _ repository.ClientRepository = (*ClientRepo)(nil)

type ClientRepo struct {
	pool *pgxpool.Pool
}

func NewClientRepo(pool *pgxpool.Pool) *ClientRepo {
	return &ClientRepo{pool: pool}
}

const clientColumns = `id, company_id, user_id, reference, name, phone, email, address, created_at`

func (r *ClientRepo) Save(ctx context.Context, tx repository.Tx, c *model.Client) error {
	if c.ID == 0 {
		const q = `
INSERT INTO clients (company_id, user_id, reference, name, phone, email, address, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, q, c.CompanyID, c.UserID, c.Reference, c.Name, c.Phone, c.Email, c.Address, c.CreatedAt)
		if err != nil {
			return err
		}
		return opErr(row.Scan(&c.ID))
	}
	const q = `UPDATE clients SET name=$3, phone=$4, email=$5, address=$6 WHERE id=$1 AND company_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, c.ID, c.CompanyID, c.Name, c.Phone, c.Email, c.Address)
	if err != nil {
		return opErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ClientRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id int64) (*model.Client, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+clientColumns+` FROM clients WHERE id=$1 AND company_id=$2;`, id, companyID)
	if err != nil {
		return nil, err
	}
	c, err := scanClient(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return c, nil
}

func (r *ClientRepo) ExistsByName(ctx context.Context, tx repository.Tx, companyID int64, name string, excludeID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM clients WHERE company_id=$1 AND LOWER(name)=LOWER($2) AND id<>$3);`
	return exists(ctx, r.pool, tx, q, companyID, name, excludeID)
}

func (r *ClientRepo) List(ctx context.Context, tx repository.Tx, companyID int64, limit int) ([]*model.Client, error) {
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE company_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;`
	return r.query(ctx, tx, q, companyID, limitOrDefault(limit))
}

func (r *ClientRepo) Search(ctx context.Context, tx repository.Tx, companyID int64, query string, limit int) ([]*model.Client, error) {
	const q = `
SELECT ` + clientColumns + ` FROM clients
 WHERE company_id=$1
   AND (name ILIKE $2 OR COALESCE(email,'') ILIKE $2 OR phone ILIKE $2 OR reference ILIKE $2)
 ORDER BY name ASC LIMIT $3;`
	return r.query(ctx, tx, q, companyID, likePattern(query), limitOrDefault(limit))
}

func (r *ClientRepo) Delete(ctx context.Context, tx repository.Tx, companyID, id int64) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM clients WHERE id=$1 AND company_id=$2;`, id, companyID)
	if err != nil {
		return opErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ClientRepo) query(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Client, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	return out, opErr(rows.Err())
}

func scanClient(row interface{ Scan(...interface{}) error }) (*model.Client, error) {
	c := new(model.Client)
	err := row.Scan(&c.ID, &c.CompanyID, &c.UserID, &c.Reference, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	return c, err
}

var _ repository.ArticleRepository = (*ArticleRepo)(nil)

type ArticleRepo struct {
	pool *pgxpool.Pool
}

func NewArticleRepo(pool *pgxpool.Pool) *ArticleRepo {
	return &ArticleRepo{pool: pool}
}

const articleColumns = `id, company_id, user_id, reference, name, price::float8, quantity_stock, unit, tva::float8, source, created_at`

func (r *ArticleRepo) Save(ctx context.Context, tx repository.Tx, a *model.Article) error {
	if a.ID == 0 {
		const q = `
INSERT INTO articles (company_id, user_id, reference, name, price, quantity_stock, unit, tva, source, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, q, a.CompanyID, a.UserID, a.Reference, a.Name, a.Price, a.Stock, a.Unit, a.TVA, a.Source, a.CreatedAt)
		if err != nil {
			return err
		}
		return opErr(row.Scan(&a.ID))
	}
	const q = `
UPDATE articles SET name=$3, price=$4, quantity_stock=$5, unit=$6, tva=$7, source=$8
 WHERE id=$1 AND company_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, a.ID, a.CompanyID, a.Name, a.Price, a.Stock, a.Unit, a.TVA, a.Source)
	if err != nil {
		return opErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ArticleRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id int64) (*model.Article, error) {
	q := `SELECT ` + articleColumns + ` FROM articles WHERE id=$1 AND company_id=$2`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id, companyID)
	if err != nil {
		return nil, err
	}
	a, err := scanArticle(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return a, nil
}

func (r *ArticleRepo) ExistsByName(ctx context.Context, tx repository.Tx, companyID int64, name string, excludeID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM articles WHERE company_id=$1 AND LOWER(name)=LOWER($2) AND id<>$3);`
	return exists(ctx, r.pool, tx, q, companyID, name, excludeID)
}

func (r *ArticleRepo) List(ctx context.Context, tx repository.Tx, companyID int64, limit int) ([]*model.Article, error) {
	const q = `SELECT ` + articleColumns + ` FROM articles WHERE company_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;`
	return r.query(ctx, tx, q, companyID, limitOrDefault(limit))
}

func (r *ArticleRepo) Search(ctx context.Context, tx repository.Tx, companyID int64, query string, limit int) ([]*model.Article, error) {
	const q = `
SELECT ` + articleColumns + ` FROM articles
 WHERE company_id=$1
   AND (name ILIKE $2 OR reference ILIKE $2 OR source ILIKE $2 OR unit ILIKE $2)
 ORDER BY name ASC LIMIT $3;`
	return r.query(ctx, tx, q, companyID, likePattern(query), limitOrDefault(limit))
}

func (r *ArticleRepo) Delete(ctx context.Context, tx repository.Tx, companyID, id int64) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM articles WHERE id=$1 AND company_id=$2;`, id, companyID)
	if err != nil {
		return opErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ArticleRepo) query(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Article, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	return out, opErr(rows.Err())
}

func scanArticle(row interface{ Scan(...interface{}) error }) (*model.Article, error) {
	a := new(model.Article)
	err := row.Scan(&a.ID, &a.CompanyID, &a.UserID, &a.Reference, &a.Name, &a.Price, &a.Stock, &a.Unit, &a.TVA, &a.Source, &a.CreatedAt)
	return a, err
}

var _ repository.MovementRepository = (*MovementRepo)(nil)

type MovementRepo struct {
	pool *pgxpool.Pool
}

func NewMovementRepo(pool *pgxpool.Pool) *MovementRepo {
	return &MovementRepo{pool: pool}
}

func (r *MovementRepo) Save(ctx context.Context, tx repository.Tx, m *model.Movement) error {
	const q = `
INSERT INTO stock_movements (article_id, user_id, type, quantity, date)
VALUES ($1,$2,$3,$4,$5)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, m.ArticleID, m.UserID, m.Type, m.Quantity, m.Date)
	if err != nil {
		return err
	}
	return opErr(row.Scan(&m.ID))
}

func (r *MovementRepo) ListByArticle(ctx context.Context, tx repository.Tx, articleID int64, limit int) ([]*model.Movement, error) {
	const q = `
SELECT id, article_id, user_id, type, quantity, date FROM stock_movements
 WHERE article_id=$1 ORDER BY date DESC, id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, articleID, limitOrDefault(limit))
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.Movement
	for rows.Next() {
		m := new(model.Movement)
		if err := rows.Scan(&m.ID, &m.ArticleID, &m.UserID, &m.Type, &m.Quantity, &m.Date); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, m)
	}
	return out, opErr(rows.Err())
}

func (r *MovementRepo) DeleteByArticle(ctx context.Context, tx repository.Tx, articleID int64) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM stock_movements WHERE article_id=$1;`, articleID)
	return opErr(err)
}

func exists(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (bool, error) {
	row, err := pickRow(ctx, pool, tx, q, args...)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
