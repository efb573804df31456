package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/infra/logging"
	"telegram-invoicing-bot/internal/infra/metrics"
)

// Subscription and payment: view, renew, upgrade, method choice and proof hand-off.
// Activation is left to the reviewer API.

func (d *Dispatcher) company(ctx context.Context, fc *FlowContext) (*model.User, *model.Company, error) {
	u, err := d.requireCompany(ctx, fc)
	if err != nil {
		return nil, nil, err
	}
	c, err := d.api.GetCompany(ctx, u.CompanyID)
	if err != nil {
		return nil, nil, err
	}
	return u, c, nil
}

func (d *Dispatcher) showSubscription(ctx context.Context, fc *FlowContext) error {
	_, c, err := d.company(ctx, fc)
	if err != nil {
		return err
	}
	kb := Keyboard{}
	if c.Plan.IsPaid() {
		kb = append(kb, row(d.p.button("btn_renew", cbSubscription(VerbRenew))))
	}
	if len(c.Plan.HigherTiers()) > 0 {
		kb = append(kb, row(d.p.button("btn_upgrade", cbSubscription(VerbUpgrade))))
	}
	kb = append(kb, row(d.p.mainMenuButton()))
	return d.p.reply(ctx, fc, d.p.companySummary(c), kb)
}

func (d *Dispatcher) subscriptionCallback(ctx context.Context, fc *FlowContext, cb Callback) error {
	fc.Session.Finish()
	if cb.Verb == VerbView {
		return d.showSubscription(ctx, fc)
	}

	_, c, err := d.company(ctx, fc)
	if err != nil {
		return err
	}
	if c.PlanStatus == model.PlanStatusPendingReview {
		return errPaymentPending
	}
	back := cbSubscription(VerbView)

	switch cb.Verb {
	case VerbRenew:
		if !c.Plan.IsPaid() {
			return d.p.reply(ctx, fc, d.p.T("subscription_renew_free"), Keyboard{
				row(d.p.button("btn_upgrade", cbSubscription(VerbUpgrade))),
				row(d.p.button("btn_back", back)),
			})
		}
		price, err := d.api.GetPlanPrice(ctx, c.Plan)
		if err != nil {
			return err
		}
		return d.p.reply(ctx, fc, d.p.T("subscription_renew", d.p.planName(c.Plan), d.p.money(price)),
			d.p.methodKeyboard(c.Plan, model.PaymentActionRenew, back))

	case VerbUpgrade:
		tiers := c.Plan.HigherTiers()
		if len(tiers) == 0 {
			return d.p.reply(ctx, fc, d.p.T("subscription_top_tier"), Keyboard{row(d.p.button("btn_back", back))})
		}
		var b strings.Builder
		b.WriteString(d.p.T("subscription_upgrade", d.p.planName(c.Plan)))
		kb := Keyboard{}
		for _, t := range tiers {
			b.WriteString("\n\n")
			b.WriteString(d.p.T("plan_benefits_" + string(t)))
			kb = append(kb, row(d.p.button("btn_upgrade_to", cbUpgradeTo(t), d.p.planName(t))))
		}
		kb = append(kb, row(d.p.button("btn_back", back)))
		return d.p.reply(ctx, fc, b.String(), kb)

	case VerbUpgradeTo:
		if cb.Plan.Rank() <= c.Plan.Rank() {
			return fmt.Errorf("upgrade from %s to %s: %w", c.Plan, cb.Plan, domain.ErrInvalidArgument)
		}
		price, err := d.api.GetPlanPrice(ctx, cb.Plan)
		if err != nil {
			return err
		}
		return d.p.reply(ctx, fc, d.p.T("subscription_upgrade_to", d.p.planName(cb.Plan), d.p.money(price)),
			d.p.methodKeyboard(cb.Plan, model.PaymentActionUpgrade, back))
	}
	return nil
}

// checkIntent verifies the intent still applies to the user's situation.
func (d *Dispatcher) checkIntent(ctx context.Context, fc *FlowContext, intent model.PaymentIntent) error {
	if intent.Action == model.PaymentActionCreate {
		if _, err := d.companyDraft(fc.Session); err != nil {
			return err
		}
		return nil
	}
	_, c, err := d.company(ctx, fc)
	if err != nil {
		return err
	}
	if c.PlanStatus == model.PlanStatusPendingReview {
		return errPaymentPending
	}
	switch intent.Action {
	case model.PaymentActionRenew:
		if intent.Plan != c.Plan {
			return fmt.Errorf("renew %s while on %s: %w", intent.Plan, c.Plan, domain.ErrInvalidArgument)
		}
	case model.PaymentActionUpgrade:
		if intent.Plan.Rank() <= c.Plan.Rank() {
			return fmt.Errorf("upgrade to %s while on %s: %w", intent.Plan, c.Plan, domain.ErrInvalidArgument)
		}
	}
	return nil
}

var errPaymentPending = errors.New("payment already under review")

func (d *Dispatcher) cancelTarget(intent model.PaymentIntent) string {
	if intent.Action == model.PaymentActionCreate {
		return cbPlanCancel()
	}
	return cbSubscription(VerbView)
}

func (d *Dispatcher) paymentCallback(ctx context.Context, fc *FlowContext, cb Callback) error {
	intent := cb.Intent
	if err := d.checkIntent(ctx, fc, intent); err != nil {
		return err
	}
	cancel := d.cancelTarget(intent)

	if cb.Verb == VerbMethod {
		fc.Session.Finish()
		price, err := d.api.GetPlanPrice(ctx, intent.Plan)
		if err != nil {
			return err
		}
		instructions := d.opts.MobileMoney
		if intent.Method == model.PaymentMethodBank {
			instructions = d.opts.BankTransfer
		}
		text := d.p.T("payment_instructions",
			d.p.planName(intent.Plan), d.p.T("payment_action_"+string(intent.Action)), d.p.money(price),
			d.p.T("method_"+string(intent.Method)), esc(instructions))
		return d.p.reply(ctx, fc, text, Keyboard{
			row(d.p.button("btn_paid", cbPayment(VerbConfirm, intent))),
			row(d.p.button("btn_cancel", cancel)),
		})
	}

	fc.Session.Begin(model.AwaitPaymentProof(intent))
	return d.p.reply(ctx, fc, d.p.T("payment_send_proof"), Keyboard{row(d.p.button("btn_cancel", cancel))})
}

func (d *Dispatcher) onPaymentProof(ctx context.Context, fc *FlowContext, proof model.Proof) error {
	s := fc.Session
	if err := s.Awaiting.Validate(); err != nil {
		return err
	}
	intent := s.Awaiting.Payment
	if proof.Kind == model.ProofText {
		proof.Text = strings.TrimSpace(proof.Text)
		if proof.Text == "" {
			return domain.NewValidationError(d.p.T("proof_empty"))
		}
	}

	var company *model.Company
	var err error
	if intent.Action == model.PaymentActionCreate {
		company, err = d.pendingCompany(ctx, fc, intent)
	} else {
		if err = d.checkIntent(ctx, fc, intent); err == nil {
			_, company, err = d.company(ctx, fc)
		}
	}
	if err != nil {
		return err
	}

	amount, err := d.api.GetPlanPrice(ctx, intent.Plan)
	if err != nil {
		return err
	}
	var userID int64
	if fc.user != nil {
		userID = fc.user.ID
	}
	rec, err := d.api.SubmitPaymentProof(ctx, model.PaymentSubmission{
		CompanyID:  company.ID,
		UserID:     userID,
		TelegramID: fc.UserID,
		Intent:     intent,
		Proof:      proof,
		Amount:     amount,
		Currency:   d.opts.Currency,
	})
	if err != nil {
		return err
	}
	metrics.IncPaymentProof(string(intent.Action), string(intent.Method))
	metrics.IncFlowOutcome("payment", "proof_submitted")

	d.notifyAdmins(ctx, fc, company, rec, amount)
	s.ClearAll()
	return d.p.reply(ctx, fc, d.p.T("payment_proof_received", d.p.planName(intent.Plan)), Keyboard{row(d.p.mainMenuButton())})
}

// notifyAdmins is best effort: the proof is already recorded.
func (d *Dispatcher) notifyAdmins(ctx context.Context, fc *FlowContext, c *model.Company, rec *model.PaymentRecord, amount int64) {
	if d.notifier == nil {
		return
	}
	sub := rec.Submission
	proof := d.p.T("proof_file", sub.Proof.FileKind)
	var file *adapter.AdminAttachment
	if sub.Proof.Kind == model.ProofText {
		proof = esc(sub.Proof.Text)
	} else {
		file = &adapter.AdminAttachment{FileID: sub.Proof.FileID, Kind: sub.Proof.FileKind}
	}
	text := d.p.T("admin_payment_proof",
		esc(displayName(fc)), fc.UserID, esc(c.Name), c.ID,
		d.p.planName(sub.Intent.Plan), d.p.T("payment_action_"+string(sub.Intent.Action)),
		d.p.T("method_"+string(sub.Intent.Method)), d.p.money(amount), proof, esc(rec.ID))
	if err := d.notifier.NotifyAdmins(ctx, text, file); err != nil {
		logging.With(ctx, d.log).Error().Err(err).Str("payment_id", rec.ID).Msg("failed to notify admins")
	}
}
