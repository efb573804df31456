package application

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/infra/logging"
	"telegram-invoicing-bot/internal/infra/metrics"
	"telegram-invoicing-bot/internal/usecase"
)

// Options carries the product settings the flows render.
type Options struct {
	Currency     string
	Location     *time.Location
	SupportURL   string
	MobileMoney  string
	BankTransfer string
	// Dev disables PII redaction in logs.
	Dev bool
}

// FlowContext is built per update and discarded afterwards.
type FlowContext struct {
	Update
	Session *model.Session
	// Parent is the menu shown when the record a handler works on is gone.
	Parent model.EntityKind
	Flow   string

	user       *model.User
	userLoaded bool

	replied  bool
	edited   bool
	answered bool
}

// Dispatcher routes updates to the flow handlers under the per-user session lock.
type Dispatcher struct {
	sessions usecase.SessionUseCase
	api      adapter.BusinessAPI
	notifier adapter.AdminNotifier
	p        *Presenter
	opts     Options
	now      func() time.Time
	log      *zerolog.Logger
}

func NewDispatcher(sessions usecase.SessionUseCase, api adapter.BusinessAPI, notifier adapter.AdminNotifier, p *Presenter, opts Options, logger *zerolog.Logger) *Dispatcher {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Dispatcher{
		sessions: sessions,
		api:      api,
		notifier: notifier,
		p:        p,
		opts:     opts,
		now:      time.Now,
		log:      logger,
	}
}

// WithClock replaces the time source; used by tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Handle processes one update. The returned error is already reported to the user
// and is meant for logging by the transport.
func (d *Dispatcher) Handle(ctx context.Context, u Update) (err error) {
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithChatID(ctx, u.ChatID)
	ctx = logging.WithTgID(ctx, u.UserID)
	log := logging.With(ctx, d.log)
	metrics.IncTelegramUpdate(string(u.Kind()))

	fc := &FlowContext{Update: u}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("flow handler panicked")
			d.fail(ctx, fc)
			err = fmt.Errorf("panic: %v", r)
		}
		d.p.answer(ctx, fc, "", false)
	}()

	withSession := d.sessions.WithSession
	if u.IsCancel() {
		withSession = d.sessions.WithSessionWait
	}
	err = withSession(ctx, u.Key(), func(ctx context.Context, s *model.Session) error {
		fc.Session = s
		return d.classify(ctx, fc, d.route(ctx, fc))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStateCorruption):
		// the stored session was unreadable and has already been dropped
		log.Warn().Err(err).Msg("unreadable session reset")
		metrics.IncFlowOutcome("session", "state_corruption")
		d.p.answer(ctx, fc, "", false)
		return d.p.reply(ctx, fc, d.p.T("state_reset"), Keyboard{row(d.p.mainMenuButton())})
	case errors.Is(err, domain.ErrLockNotAcquired):
		metrics.IncSessionLockContention()
		log.Warn().Msg("session busy, update dropped")
		d.p.answer(ctx, fc, d.p.T("busy"), false)
		if fc.CallbackID == "" {
			_ = d.p.reply(ctx, fc, d.p.T("busy"), nil)
		}
		return err
	}
	log.Error().Err(err).Str("flow", fc.Flow).Msg("update failed")
	if !fc.replied {
		d.fail(ctx, fc)
	}
	return err
}

func (d *Dispatcher) fail(ctx context.Context, fc *FlowContext) {
	d.p.answer(ctx, fc, d.p.T("error_generic"), true)
	if fc.CallbackID == "" {
		_ = d.p.reply(ctx, fc, d.p.T("error_generic"), nil)
	}
}

func (d *Dispatcher) route(ctx context.Context, fc *FlowContext) error {
	switch fc.Kind() {
	case KindCommand:
		return d.handleCommand(ctx, fc)
	case KindCallback:
		return d.handleCallback(ctx, fc)
	case KindFile:
		if fc.Session.Awaiting.Kind == model.AwaitingPaymentProof {
			fc.Flow = "payment"
			return d.onPaymentProof(ctx, fc, *fc.File)
		}
		return d.p.reply(ctx, fc, d.p.T("file_unexpected"), nil)
	}
	return d.handleText(ctx, fc)
}

func (d *Dispatcher) handleCommand(ctx context.Context, fc *FlowContext) error {
	name, args := fc.Command()
	metrics.IncTelegramCommand(name)
	fc.Flow = name

	switch name {
	case "start", "menu":
		fc.Session.ClearAll()
		return d.showMainMenu(ctx, fc)
	case "cancel":
		fc.Session.ClearAll()
		metrics.IncFlowOutcome("any", "cancelled")
		return d.p.reply(ctx, fc, d.p.T("cancelled"), Keyboard{row(d.p.mainMenuButton())})
	case "help":
		return d.p.reply(ctx, fc, d.p.T("help"), nil)
	case "ticket":
		return d.showTicket(ctx, fc)
	case "createcompany":
		fc.Flow = "company"
		return d.startCompany(ctx, fc)
	case "clients":
		fc.Flow = "client"
		fc.Session.ClearAll()
		return d.showEntityMenu(ctx, fc, model.EntityClient)
	case "articles":
		fc.Flow = "article"
		fc.Session.ClearAll()
		return d.showEntityMenu(ctx, fc, model.EntityArticle)
	case "subscription":
		fc.Flow = "subscription"
		fc.Session.ClearAll()
		return d.showSubscription(ctx, fc)
	case "stock":
		fc.Flow = "article"
		return d.stockCommand(ctx, fc, args)
	}
	return d.p.reply(ctx, fc, d.p.T("unknown_command"), nil)
}

func (d *Dispatcher) handleCallback(ctx context.Context, fc *FlowContext) error {
	cb := ParseCallback(fc.CallbackData)
	metrics.IncTelegramCallback(cb.Route())
	fc.Flow = string(cb.Domain)

	switch cb.Domain {
	case DomainMenu:
		fc.Session.ClearAll()
		return d.showMainMenu(ctx, fc)
	case DomainPlan:
		fc.Flow = "company"
		return d.companyCallback(ctx, fc, cb)
	case DomainClient, DomainArticle:
		fc.Parent = cb.Entity()
		return d.entityCallback(ctx, fc, cb)
	case DomainSubscription:
		return d.subscriptionCallback(ctx, fc, cb)
	case DomainPayment:
		return d.paymentCallback(ctx, fc, cb)
	}
	d.log.Debug().Str("data", fc.CallbackData).Msg("unknown callback")
	d.p.answer(ctx, fc, d.p.T("unknown_action"), true)
	return nil
}

// handleText feeds free text to whatever the session is waiting for.
func (d *Dispatcher) handleText(ctx context.Context, fc *FlowContext) error {
	a := fc.Session.Awaiting
	if err := a.Validate(); err != nil {
		return err
	}
	switch a.Kind {
	case model.AwaitingCompanyData:
		fc.Flow = "company"
		return d.onCompanyData(ctx, fc)
	case model.AwaitingClientData:
		fc.Flow, fc.Parent = "client", model.EntityClient
		return d.onClientData(ctx, fc)
	case model.AwaitingArticleData:
		fc.Flow, fc.Parent = "article", model.EntityArticle
		return d.onArticleData(ctx, fc)
	case model.AwaitingEditField:
		fc.Flow, fc.Parent = string(a.Entity), a.Entity
		return d.onEditField(ctx, fc, a)
	case model.AwaitingStockOp:
		fc.Flow, fc.Parent = "article", model.EntityArticle
		return d.onStockQuantity(ctx, fc, a)
	case model.AwaitingSearch:
		fc.Flow, fc.Parent = string(a.Entity), a.Entity
		return d.onSearch(ctx, fc, a.Entity)
	case model.AwaitingPaymentProof:
		fc.Flow = "payment"
		return d.onPaymentProof(ctx, fc, model.Proof{Kind: model.ProofText, Text: fc.Text})
	}
	return d.p.reply(ctx, fc, d.p.T("unknown_message"), nil)
}

// classify is the single place where flow errors become replies and session effects.
// A nil return lets the session be saved; a non-nil return discards its changes.
func (d *Dispatcher) classify(ctx context.Context, fc *FlowContext, err error) error {
	if err == nil {
		return nil
	}
	log := logging.With(ctx, d.log)
	s := fc.Session

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		metrics.IncValidationFailure(fc.Flow)
		d.p.answer(ctx, fc, "", false)
		return d.p.reply(ctx, fc, d.p.T("validation_failed", d.p.problems(verr.Problems)), nil)

	case errors.Is(err, domain.ErrInsufficientStock):
		metrics.IncValidationFailure(fc.Flow)
		return d.p.reply(ctx, fc, d.p.T("stock_insufficient"), nil)

	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncValidationFailure(fc.Flow)
		d.p.answer(ctx, fc, d.p.T("invalid_input"), true)
		if fc.CallbackID == "" {
			return d.p.reply(ctx, fc, d.p.T("invalid_input"), nil)
		}
		return nil

	case errors.Is(err, errPaymentPending):
		s.ClearAll()
		d.p.answer(ctx, fc, "", false)
		return d.p.reply(ctx, fc, d.p.T("payment_already_pending"), Keyboard{row(d.p.mainMenuButton())})

	case errors.Is(err, domain.ErrNotFound):
		// the single not-found path: alert, then back to the parent menu
		s.Finish()
		metrics.IncFlowOutcome(fc.Flow, "not_found")
		d.p.answer(ctx, fc, d.p.T("not_found"), true)
		if fc.Parent != "" {
			return d.p.reply(ctx, fc, d.p.T("not_found")+"\n\n"+d.p.T(string(fc.Parent)+"_menu"), d.p.entityMenu(fc.Parent))
		}
		return d.p.reply(ctx, fc, d.p.T("not_found"), Keyboard{row(d.p.mainMenuButton())})

	case errors.Is(err, domain.ErrAlreadyExists):
		metrics.IncFlowOutcome(fc.Flow, "duplicate")
		d.p.answer(ctx, fc, "", false)
		return d.p.reply(ctx, fc, d.p.T("duplicate"), nil)

	case errors.Is(err, domain.ErrLimitExceeded):
		s.Finish()
		metrics.IncFlowOutcome(fc.Flow, "limit_exceeded")
		d.p.answer(ctx, fc, "", false)
		return d.p.reply(ctx, fc, d.p.T("limit_exceeded"), Keyboard{
			row(d.p.button("btn_upgrade", cbSubscription(VerbUpgrade))),
			row(d.p.mainMenuButton()),
		})

	case errors.Is(err, domain.ErrNoCompany):
		s.ClearAll()
		d.p.answer(ctx, fc, "", false)
		return d.p.reply(ctx, fc, d.p.T("no_company"), Keyboard{row(d.p.button("btn_create_company", cbPlanStart()))})

	case errors.Is(err, domain.ErrCompanyExists):
		s.ClearAll()
		d.p.answer(ctx, fc, "", false)
		return d.p.reply(ctx, fc, d.p.T("company_exists"), Keyboard{row(d.p.mainMenuButton())})

	case errors.Is(err, domain.ErrStateCorruption):
		log.Warn().Err(err).Str("awaiting", string(s.Awaiting.Kind)).Msg("inconsistent session cleared")
		s.ClearAll()
		metrics.IncFlowOutcome(fc.Flow, "state_corruption")
		d.p.answer(ctx, fc, "", false)
		return d.p.reply(ctx, fc, d.p.T("state_reset"), Keyboard{row(d.p.mainMenuButton())})
	}

	// transport failures, timeouts and anything unexpected leave the session untouched
	metrics.IncFlowOutcome(fc.Flow, "failed")
	if ctx.Err() != nil {
		// out of lock time; Handle replies on its own context
		fc.replied = false
		return err
	}
	d.fail(ctx, fc)
	fc.replied = true
	return err
}

// -----------------------------
// Shared lookups
// -----------------------------

// currentUser resolves the business user once per update; nil means unknown.
func (d *Dispatcher) currentUser(ctx context.Context, fc *FlowContext) (*model.User, error) {
	if fc.userLoaded {
		return fc.user, nil
	}
	u, err := d.api.FindUserByPlatformID(ctx, fc.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	fc.user, fc.userLoaded = u, true
	return u, nil
}

// requireCompany returns the user and their company id or ErrNoCompany.
func (d *Dispatcher) requireCompany(ctx context.Context, fc *FlowContext) (*model.User, error) {
	u, err := d.currentUser(ctx, fc)
	if err != nil {
		return nil, err
	}
	if !u.HasCompany() {
		return nil, domain.ErrNoCompany
	}
	return u, nil
}

func (d *Dispatcher) showMainMenu(ctx context.Context, fc *FlowContext) error {
	u, err := d.currentUser(ctx, fc)
	if err != nil {
		return err
	}
	if !u.HasCompany() {
		return d.p.reply(ctx, fc, d.p.T("welcome_new", esc(displayName(fc))), d.p.mainMenu(false))
	}
	return d.p.reply(ctx, fc, d.p.T("welcome_back", esc(u.Name)), d.p.mainMenu(true))
}

func (d *Dispatcher) showTicket(ctx context.Context, fc *FlowContext) error {
	if d.opts.SupportURL == "" {
		return d.p.reply(ctx, fc, d.p.T("ticket"), nil)
	}
	return d.p.reply(ctx, fc, d.p.T("ticket"), Keyboard{row(adapter.InlineButton{Text: d.p.T("btn_support"), URL: d.opts.SupportURL})})
}

func displayName(fc *FlowContext) string {
	if fc.Username != "" {
		return fc.Username
	}
	return fmt.Sprintf("%d", fc.UserID)
}
