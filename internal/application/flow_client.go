package application

import (
	"context"
	"fmt"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/validate"
	"telegram-invoicing-bot/internal/infra/metrics"
)

// ListLimit caps list and search results rendered as buttons.
const ListLimit = 10

// entityCallback routes client_* and article_* callbacks. Every verb except the
// menu works on a record of the user's company.
func (d *Dispatcher) entityCallback(ctx context.Context, fc *FlowContext, cb Callback) error {
	kind := cb.Entity()
	u, err := d.requireCompany(ctx, fc)
	if err != nil {
		return err
	}
	s := fc.Session

	switch cb.Verb {
	case VerbMenu:
		s.Finish()
		return d.showEntityMenu(ctx, fc, kind)
	case VerbAdd:
		s.Finish()
		if kind == model.EntityClient {
			return d.startClientAdd(ctx, fc, u)
		}
		s.Begin(model.AwaitArticleData())
		return d.p.reply(ctx, fc, d.p.T("article_add_prompt"), Keyboard{row(d.p.backTo(kind))})
	case VerbList:
		s.Finish()
		return d.listEntities(ctx, fc, u, kind)
	case VerbSearch:
		s.Begin(model.AwaitSearch(kind))
		return d.p.reply(ctx, fc, d.p.T(string(kind)+"_search_prompt"), Keyboard{row(d.p.backTo(kind))})
	}

	if kind == model.EntityArticle {
		return d.articleCallback(ctx, fc, u, cb)
	}
	return d.clientCallback(ctx, fc, u, cb)
}

func (d *Dispatcher) showEntityMenu(ctx context.Context, fc *FlowContext, kind model.EntityKind) error {
	if _, err := d.requireCompany(ctx, fc); err != nil {
		return err
	}
	return d.p.reply(ctx, fc, d.p.T(string(kind)+"_menu"), d.p.entityMenu(kind))
}

func (d *Dispatcher) startClientAdd(ctx context.Context, fc *FlowContext, u *model.User) error {
	c, err := d.api.GetCompany(ctx, u.CompanyID)
	if err != nil {
		return err
	}
	if !c.Plan.Limits().AllowsClient(c.ClientCount) {
		return domain.ErrLimitExceeded
	}
	fc.Session.Begin(model.AwaitClientData())
	return d.p.reply(ctx, fc, d.p.T("client_add_prompt"), Keyboard{row(d.p.backTo(model.EntityClient))})
}

func (d *Dispatcher) onClientData(ctx context.Context, fc *FlowContext) error {
	u, err := d.requireCompany(ctx, fc)
	if err != nil {
		return err
	}
	draft, err := validate.ParseClientRecord(fc.Text)
	if err != nil {
		return err
	}
	c, err := d.api.CreateClient(ctx, u.CompanyID, u.ID, draft)
	if err != nil {
		return err
	}
	fc.Session.Finish()
	metrics.IncFlowOutcome("client", "created")
	return d.p.reply(ctx, fc, d.p.T("client_created", esc(c.Reference))+"\n\n"+d.p.clientCard(c), d.p.clientKeyboard(c.ID))
}

func (d *Dispatcher) listEntities(ctx context.Context, fc *FlowContext, u *model.User, kind model.EntityKind) error {
	if kind == model.EntityArticle {
		items, err := d.api.ListArticles(ctx, u.CompanyID, ListLimit)
		if err != nil {
			return err
		}
		return d.renderArticles(ctx, fc, items, "article_list", "article_list_empty")
	}
	items, err := d.api.ListClients(ctx, u.CompanyID, ListLimit)
	if err != nil {
		return err
	}
	return d.renderClients(ctx, fc, items, "client_list", "client_list_empty")
}

func (d *Dispatcher) renderClients(ctx context.Context, fc *FlowContext, items []*model.Client, title, empty string) error {
	if len(items) == 0 {
		return d.p.reply(ctx, fc, d.p.T(empty), d.p.entityMenu(model.EntityClient))
	}
	kb := listKeyboard(d.p, model.EntityClient, items,
		func(c *model.Client) string { return fmt.Sprintf("%s (%s)", c.Name, c.Phone) },
		func(c *model.Client) int64 { return c.ID })
	return d.p.reply(ctx, fc, d.p.T(title, len(items)), kb)
}

// onSearch runs the keyword search of either entity kind.
func (d *Dispatcher) onSearch(ctx context.Context, fc *FlowContext, kind model.EntityKind) error {
	u, err := d.requireCompany(ctx, fc)
	if err != nil {
		return err
	}
	q, err := validate.SearchQuery(fc.Text)
	if err != nil {
		return err
	}
	fc.Session.Finish()
	noMatch := func() error {
		return d.p.reply(ctx, fc, d.p.T("search_no_results", esc(q)), Keyboard{
			row(d.p.button("btn_search_again", cbEntity(kind, "search", 0))),
			row(d.p.button("btn_list", cbEntity(kind, "list", 0)), d.p.backTo(kind)),
		})
	}

	if kind == model.EntityArticle {
		items, err := d.api.SearchArticles(ctx, u.CompanyID, q, ListLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return noMatch()
		}
		return d.renderArticles(ctx, fc, items, "search_results", "")
	}
	items, err := d.api.SearchClients(ctx, u.CompanyID, q, ListLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return noMatch()
	}
	return d.renderClients(ctx, fc, items, "search_results", "")
}

func (d *Dispatcher) clientCallback(ctx context.Context, fc *FlowContext, u *model.User, cb Callback) error {
	s := fc.Session
	c, err := d.api.GetClient(ctx, u.CompanyID, cb.ID)
	if err != nil {
		return err
	}

	switch cb.Verb {
	case VerbView, VerbDeleteCancel:
		s.Finish()
		return d.p.reply(ctx, fc, d.p.clientCard(c), d.p.clientKeyboard(c.ID))
	case VerbEdit:
		s.Finish()
		return d.p.reply(ctx, fc, d.p.T("edit_choose_field", esc(c.Name)), d.p.fieldKeyboard(model.EntityClient, c.ID))
	case VerbEditField:
		s.Begin(model.AwaitEditField(model.EntityClient, c.ID, cb.Field))
		return d.p.reply(ctx, fc, d.p.T("edit_enter_value", d.p.T("field_client_"+cb.Field), esc(c.Field(cb.Field))),
			Keyboard{row(d.p.button("btn_cancel", cbEntity(model.EntityClient, "view", c.ID)))})
	case VerbDelete:
		s.Finish()
		return d.p.reply(ctx, fc, d.p.T("client_delete_confirm", esc(c.Name)), d.p.deleteKeyboard(model.EntityClient, c.ID))
	case VerbDeleteConfirm:
		if err := d.api.DeleteClient(ctx, u.CompanyID, c.ID); err != nil {
			return err
		}
		s.Finish()
		metrics.IncFlowOutcome("client", "deleted")
		return d.p.reply(ctx, fc, d.p.T("client_deleted", esc(c.Name)), d.p.entityMenu(model.EntityClient))
	}
	return nil
}

// onEditField validates and applies one field of a client or an article.
func (d *Dispatcher) onEditField(ctx context.Context, fc *FlowContext, a model.Awaiting) error {
	u, err := d.requireCompany(ctx, fc)
	if err != nil {
		return err
	}

	if a.Entity == model.EntityArticle {
		value, err := validate.ArticleField(a.Field, fc.Text)
		if err != nil {
			return err
		}
		art, err := d.api.UpdateArticleField(ctx, u.CompanyID, a.EntityID, a.Field, value)
		if err != nil {
			return err
		}
		fc.Session.Finish()
		metrics.IncFlowOutcome("article", "field_updated")
		return d.p.reply(ctx, fc, d.p.T("field_updated", d.p.T("field_article_"+a.Field))+"\n\n"+d.p.articleCard(art), d.p.articleKeyboard(art.ID))
	}

	value, err := validate.ClientField(a.Field, fc.Text)
	if err != nil {
		return err
	}
	c, err := d.api.UpdateClientField(ctx, u.CompanyID, a.EntityID, a.Field, value)
	if err != nil {
		return err
	}
	fc.Session.Finish()
	metrics.IncFlowOutcome("client", "field_updated")
	return d.p.reply(ctx, fc, d.p.T("field_updated", d.p.T("field_client_"+a.Field))+"\n\n"+d.p.clientCard(c), d.p.clientKeyboard(c.ID))
}
