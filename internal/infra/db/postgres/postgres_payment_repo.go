package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, company_id, COALESCE(user_id, 0), telegram_id, plan, action, method,
       proof_kind, proof_text, proof_file_id, proof_file_kind, amount, currency, status, submitted_at`

func (r *PaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (
  id, company_id, user_id, telegram_id, plan, action, method,
  proof_kind, proof_text, proof_file_id, proof_file_kind, amount, currency, status, submitted_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET status=$14;`
	s := p.Submission
	var userID *int64
	if s.UserID != 0 {
		userID = &s.UserID
	}
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, s.CompanyID, userID, s.TelegramID, s.Intent.Plan, s.Intent.Action, s.Intent.Method,
		s.Proof.Kind, s.Proof.Text, s.Proof.FileID, s.Proof.FileKind, s.Amount, s.Currency, p.Status, p.SubmittedAt)
	return opErr(err)
}

func (r *PaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *PaymentRepo) FindLatestPending(ctx context.Context, tx repository.Tx, companyID int64) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
 WHERE company_id=$1 AND status='pending_review'
 ORDER BY submitted_at DESC LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", companyID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE payments SET status=$2 WHERE id=$1;`, id, status)
	if err != nil {
		return opErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPayment(row interface{ Scan(...interface{}) error }) (*model.PaymentRecord, error) {
	p := new(model.PaymentRecord)
	s := &p.Submission
	if err := row.Scan(&p.ID, &s.CompanyID, &s.UserID, &s.TelegramID, &s.Intent.Plan, &s.Intent.Action, &s.Intent.Method,
		&s.Proof.Kind, &s.Proof.Text, &s.Proof.FileID, &s.Proof.FileKind, &s.Amount, &s.Currency, &p.Status, &p.SubmittedAt); err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}
