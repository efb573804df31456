package application

import (
	"context"
	"encoding/json"
	"fmt"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/validate"
	"telegram-invoicing-bot/internal/infra/logging"
	"telegram-invoicing-bot/internal/infra/metrics"
)

// Company creation: plan selection, company record, then either immediate
// activation (free) or payment method and proof (paid).

func (d *Dispatcher) startCompany(ctx context.Context, fc *FlowContext) error {
	u, err := d.currentUser(ctx, fc)
	if err != nil {
		return err
	}
	if u.HasCompany() {
		return domain.ErrCompanyExists
	}
	fc.Session.ClearAll()
	return d.p.reply(ctx, fc, d.p.T("company_choose_plan"), d.p.planKeyboard())
}

func (d *Dispatcher) companyCallback(ctx context.Context, fc *FlowContext, cb Callback) error {
	switch cb.Verb {
	case VerbMenu:
		return d.startCompany(ctx, fc)
	case VerbCancel:
		fc.Session.ClearAll()
		metrics.IncFlowOutcome("company", "cancelled")
		return d.p.reply(ctx, fc, d.p.T("company_cancelled"), Keyboard{row(d.p.mainMenuButton())})
	}

	u, err := d.currentUser(ctx, fc)
	if err != nil {
		return err
	}
	if u.HasCompany() {
		return domain.ErrCompanyExists
	}
	s := fc.Session
	s.ClearAll()
	s.Set(model.ScratchSelectedPlan, string(cb.Plan))
	s.Begin(model.AwaitCompanyData())
	return d.p.reply(ctx, fc, d.p.T("company_enter_data", d.p.planName(cb.Plan)), Keyboard{row(d.p.button("btn_cancel", cbPlanCancel()))})
}

func (d *Dispatcher) selectedPlan(s *model.Session) (model.PlanTier, error) {
	raw, ok := s.Get(model.ScratchSelectedPlan)
	if !ok {
		return "", fmt.Errorf("no selected plan: %w", domain.ErrStateCorruption)
	}
	plan, err := model.ParsePlanTier(raw)
	if err != nil {
		return "", fmt.Errorf("selected plan %q: %w", raw, domain.ErrStateCorruption)
	}
	return plan, nil
}

func (d *Dispatcher) onCompanyData(ctx context.Context, fc *FlowContext) error {
	s := fc.Session
	plan, err := d.selectedPlan(s)
	if err != nil {
		return err
	}
	draft, err := validate.ParseCompanyRecord(fc.Text)
	if err != nil {
		return err
	}
	draft.Plan = plan
	draft.OwnerTelegramID = fc.UserID
	draft.OwnerUsername = fc.Username

	if plan.IsPaid() {
		draft.PlanStatus = model.PlanStatusPendingReview
		draft.IsActive = false
		b, err := json.Marshal(draft)
		if err != nil {
			return err
		}
		s.Set(model.ScratchCompanyDraft, string(b))
		s.Finish()
		return d.p.reply(ctx, fc, d.p.T("company_choose_method", esc(draft.Name), d.p.planName(plan)),
			d.p.methodKeyboard(plan, model.PaymentActionCreate, cbPlanCancel()))
	}

	start, end := model.PlanPeriod(d.now().In(d.opts.Location))
	draft.PlanStatus = model.PlanStatusActive
	draft.IsActive = true
	draft.PlanStart, draft.PlanEnd = &start, &end

	company, err := d.api.CreateCompany(ctx, draft)
	if err != nil {
		return err
	}
	s.ClearAll()
	metrics.IncCompanyCreated(string(plan))
	metrics.IncFlowOutcome("company", "created")
	logging.With(ctx, d.log).Info().Int64("company_id", company.ID).
		Str("email", logging.Redact(company.Email, d.opts.Dev)).Msg("free company created")

	login, password := draft.Credentials()
	return d.p.reply(ctx, fc,
		d.p.T("company_created", esc(company.Name), d.p.planName(plan), date(company.PlanStart), date(company.PlanEnd), esc(login), esc(password)),
		Keyboard{row(d.p.mainMenuButton())})
}

// companyDraft reads the pending paid-plan company kept in scratch.
func (d *Dispatcher) companyDraft(s *model.Session) (model.CompanyDraft, error) {
	var draft model.CompanyDraft
	raw, ok := s.Get(model.ScratchCompanyDraft)
	if !ok {
		return draft, fmt.Errorf("no company draft: %w", domain.ErrStateCorruption)
	}
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return draft, fmt.Errorf("decode company draft: %w", domain.ErrStateCorruption)
	}
	return draft, nil
}

// pendingCompany creates the inactive company of a paid onboarding, or reuses the
// one left by an earlier proof attempt.
func (d *Dispatcher) pendingCompany(ctx context.Context, fc *FlowContext, intent model.PaymentIntent) (*model.Company, error) {
	draft, err := d.companyDraft(fc.Session)
	if err != nil {
		return nil, err
	}
	if draft.Plan != intent.Plan {
		return nil, fmt.Errorf("draft plan %s, intent plan %s: %w", draft.Plan, intent.Plan, domain.ErrStateCorruption)
	}

	u, err := d.currentUser(ctx, fc)
	if err != nil {
		return nil, err
	}
	if u.HasCompany() {
		c, err := d.api.GetCompany(ctx, u.CompanyID)
		if err != nil {
			return nil, err
		}
		if c.IsActive || c.PlanStatus == model.PlanStatusActive {
			return nil, domain.ErrCompanyExists
		}
		return c, nil
	}

	draft.PlanStatus = model.PlanStatusPendingReview
	draft.IsActive = false
	draft.PlanStart, draft.PlanEnd = nil, nil
	c, err := d.api.CreateCompany(ctx, draft)
	if err != nil {
		return nil, err
	}
	metrics.IncCompanyCreated(string(draft.Plan))
	return c, nil
}
