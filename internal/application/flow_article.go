package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/validate"
	"telegram-invoicing-bot/internal/infra/metrics"
)

func (d *Dispatcher) onArticleData(ctx context.Context, fc *FlowContext) error {
	u, err := d.requireCompany(ctx, fc)
	if err != nil {
		return err
	}
	draft, err := validate.ParseArticleRecord(fc.Text)
	if err != nil {
		return err
	}
	a, err := d.api.CreateArticle(ctx, u.CompanyID, u.ID, draft)
	if err != nil {
		return err
	}
	fc.Session.Finish()
	metrics.IncFlowOutcome("article", "created")
	return d.p.reply(ctx, fc, d.p.T("article_created", esc(a.Reference))+"\n\n"+d.p.articleCard(a), d.p.articleKeyboard(a.ID))
}

func (d *Dispatcher) renderArticles(ctx context.Context, fc *FlowContext, items []*model.Article, title, empty string) error {
	if len(items) == 0 {
		return d.p.reply(ctx, fc, d.p.T(empty), d.p.entityMenu(model.EntityArticle))
	}
	kb := listKeyboard(d.p, model.EntityArticle, items,
		func(a *model.Article) string { return fmt.Sprintf("%s (%d %s)", a.Name, a.Stock, a.Unit) },
		func(a *model.Article) int64 { return a.ID })
	return d.p.reply(ctx, fc, d.p.T(title, len(items)), kb)
}

func (d *Dispatcher) articleCallback(ctx context.Context, fc *FlowContext, u *model.User, cb Callback) error {
	s := fc.Session
	a, err := d.api.GetArticle(ctx, u.CompanyID, cb.ID)
	if err != nil {
		return err
	}

	switch cb.Verb {
	case VerbView, VerbDeleteCancel:
		s.Finish()
		return d.p.reply(ctx, fc, d.p.articleCard(a), d.p.articleKeyboard(a.ID))
	case VerbEdit:
		s.Finish()
		return d.p.reply(ctx, fc, d.p.T("edit_choose_field", esc(a.Name)), d.p.fieldKeyboard(model.EntityArticle, a.ID))
	case VerbEditField:
		s.Begin(model.AwaitEditField(model.EntityArticle, a.ID, cb.Field))
		return d.p.reply(ctx, fc, d.p.T("edit_enter_value", d.p.T("field_article_"+cb.Field), esc(a.Field(cb.Field))),
			Keyboard{row(d.p.button("btn_cancel", cbEntity(model.EntityArticle, "view", a.ID)))})
	case VerbStock:
		s.Finish()
		return d.p.reply(ctx, fc, d.p.T("stock_menu", esc(a.Name), a.Stock, esc(a.Unit)), d.p.stockKeyboard(a.ID))
	case VerbStockOp:
		s.Begin(model.AwaitStockOp(a.ID, cb.Op))
		return d.p.reply(ctx, fc, d.p.T("stock_prompt_"+string(cb.Op), esc(a.Name), a.Stock, esc(a.Unit)),
			Keyboard{row(d.p.button("btn_cancel", cbEntity(model.EntityArticle, "stock", a.ID)))})
	case VerbMovements:
		s.Finish()
		return d.showMovements(ctx, fc, u, a)
	case VerbDelete:
		s.Finish()
		return d.p.reply(ctx, fc, d.p.T("article_delete_confirm", esc(a.Name)), d.p.deleteKeyboard(model.EntityArticle, a.ID))
	case VerbDeleteConfirm:
		if err := d.api.DeleteArticle(ctx, u.CompanyID, a.ID); err != nil {
			return err
		}
		s.Finish()
		metrics.IncFlowOutcome("article", "deleted")
		return d.p.reply(ctx, fc, d.p.T("article_deleted", esc(a.Name)), d.p.entityMenu(model.EntityArticle))
	}
	return nil
}

func (d *Dispatcher) showMovements(ctx context.Context, fc *FlowContext, u *model.User, a *model.Article) error {
	ms, err := d.api.ListMovements(ctx, u.CompanyID, a.ID, ListLimit)
	if err != nil {
		return err
	}
	kb := Keyboard{row(d.p.button("btn_back", cbEntity(model.EntityArticle, "view", a.ID)))}
	if len(ms) == 0 {
		return d.p.reply(ctx, fc, d.p.T("movements_empty", esc(a.Name)), kb)
	}
	var b strings.Builder
	b.WriteString(d.p.T("movements_title", esc(a.Name), a.Stock, esc(a.Unit)))
	for _, m := range ms {
		b.WriteByte('\n')
		b.WriteString(d.p.movementLine(m))
	}
	return d.p.reply(ctx, fc, b.String(), kb)
}

func (d *Dispatcher) onStockQuantity(ctx context.Context, fc *FlowContext, a model.Awaiting) error {
	u, err := d.requireCompany(ctx, fc)
	if err != nil {
		return err
	}
	qty, err := validate.StockQuantity(a.StockOp, fc.Text)
	if err != nil {
		return err
	}
	art, change, err := d.api.AdjustArticleStock(ctx, u.CompanyID, a.EntityID, u.ID, a.StockOp, qty)
	if err != nil {
		return err
	}
	fc.Session.Finish()
	metrics.IncFlowOutcome("article", "stock_"+string(a.StockOp))
	return d.p.reply(ctx, fc, d.stockConfirmation(art, change), d.p.stockKeyboard(art.ID))
}

func (d *Dispatcher) stockConfirmation(a *model.Article, change model.StockChange) string {
	text := d.p.T("stock_updated", esc(a.Name), d.p.T("movement_"+string(change.Movement.Type)),
		change.Movement.Quantity, change.Old, change.New, esc(a.Unit))
	if model.IsLowStock(change.New) {
		text += "\n\n" + d.p.T("stock_low_warning", change.New, model.LowStockThreshold)
	}
	return text
}

// stockCommand handles "/stock <article_id> <entry|exit|inventory-reset> <quantity>".
func (d *Dispatcher) stockCommand(ctx context.Context, fc *FlowContext, args string) error {
	u, err := d.requireCompany(ctx, fc)
	if err != nil {
		return err
	}
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return domain.NewValidationError(d.p.T("stock_usage"))
	}
	id, ok := parseID(fields[0])
	if !ok {
		return domain.NewValidationError(d.p.T("stock_usage"))
	}
	verr := &domain.ValidationError{}
	t, err := validate.MovementType(fields[1])
	collectProblems(verr, err)
	op, _ := model.StockOpFor(t)
	qty, err := validate.StockQuantity(op, fields[2])
	collectProblems(verr, err)
	if err := verr.OrNil(); err != nil {
		return err
	}

	fc.Parent = model.EntityArticle
	a, change, err := d.api.AdjustArticleStock(ctx, u.CompanyID, id, u.ID, op, qty)
	if err != nil {
		return err
	}
	metrics.IncFlowOutcome("article", "stock_"+string(op))
	return d.p.reply(ctx, fc, d.stockConfirmation(a, change), d.p.stockKeyboard(id))
}

func collectProblems(verr *domain.ValidationError, err error) {
	if err == nil {
		return
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		verr.Problems = append(verr.Problems, ve.Problems...)
		return
	}
	verr.Add(err.Error())
}
