package application

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
)

// Translator resolves message keys; *i18n.Translator satisfies it.
type Translator interface {
	T(key string, args ...interface{}) string
}

type Keyboard [][]adapter.InlineButton

func row(buttons ...adapter.InlineButton) []adapter.InlineButton { return buttons }

func (p *Presenter) button(key, data string, args ...interface{}) adapter.InlineButton {
	return adapter.InlineButton{Text: p.tr.T(key, args...), Data: data}
}

// Presenter turns flow results into chat messages and inline keyboards.
type Presenter struct {
	bot      adapter.TelegramBotAdapter
	tr       Translator
	currency string
	log      *zerolog.Logger
}

func NewPresenter(bot adapter.TelegramBotAdapter, tr Translator, currency string, logger *zerolog.Logger) *Presenter {
	return &Presenter{bot: bot, tr: tr, currency: currency, log: logger}
}

func (p *Presenter) T(key string, args ...interface{}) string { return p.tr.T(key, args...) }

// reply edits the keyboard message of a callback once, then sends new messages.
func (p *Presenter) reply(ctx context.Context, fc *FlowContext, text string, kb Keyboard) error {
	fc.replied = true
	if fc.CallbackID != "" && fc.MessageID != 0 && !fc.edited {
		fc.edited = true
		err := p.bot.EditMessage(ctx, adapter.EditMessageParams{
			ChatID:    fc.ChatID,
			MessageID: fc.MessageID,
			Text:      text,
			ParseMode: adapter.ParseModeHTML,
			Rows:      kb,
		})
		if err == nil {
			return nil
		}
		p.log.Debug().Err(err).Int("message_id", fc.MessageID).Msg("edit failed, sending a new message")
	}
	_, err := p.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatID:    fc.ChatID,
		Text:      text,
		ParseMode: adapter.ParseModeHTML,
		Rows:      kb,
	})
	return err
}

// answer stops the callback spinner; alert shows text as a modal.
func (p *Presenter) answer(ctx context.Context, fc *FlowContext, text string, alert bool) {
	if fc.CallbackID == "" || fc.answered {
		return
	}
	fc.answered = true
	if err := p.bot.AnswerCallback(ctx, adapter.CallbackAnswer{CallbackID: fc.CallbackID, Text: text, Alert: alert}); err != nil {
		p.log.Debug().Err(err).Msg("answer callback failed")
	}
}

// NotifyActivated tells the owner that a reviewer approved the payment.
func (p *Presenter) NotifyActivated(ctx context.Context, c *model.Company) error {
	if c.OwnerTelegramID == 0 {
		return nil
	}
	_, err := p.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatID:    c.OwnerTelegramID,
		Text:      p.tr.T("company_activated", p.planName(c.Plan), esc(c.Name), date(c.PlanEnd)),
		ParseMode: adapter.ParseModeHTML,
		Rows:      p.mainMenu(true),
	})
	return err
}

// -----------------------------
// Formatting
// -----------------------------

func esc(s string) string { return html.EscapeString(s) }

// groupThousands formats 1234567 as "1 234 567".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func (p *Presenter) money(amount int64) string {
	return groupThousands(amount) + " " + p.currency
}

// price renders decimals with a comma, e.g. "5 250,50 XOF".
func (p *Presenter) price(v float64) string {
	whole := int64(v)
	cents := int64((v-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole, cents = whole+1, 0
	}
	if cents == 0 {
		return p.money(whole)
	}
	return fmt.Sprintf("%s,%02d %s", groupThousands(whole), cents, p.currency)
}

func percent(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1) + " %"
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02/01/2006")
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return esc(*s)
}

func (p *Presenter) problems(problems []string) string {
	var b strings.Builder
	for _, pr := range problems {
		b.WriteString("• ")
		b.WriteString(esc(pr))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Presenter) planName(plan model.PlanTier) string {
	return p.tr.T("plan_name_" + string(plan))
}

func (p *Presenter) clientCard(c *model.Client) string {
	return p.tr.T("client_card",
		esc(c.Name), esc(c.Reference), esc(c.Phone), orDash(c.Email), orDash(c.Address), c.CreatedAt.Format("02/01/2006"))
}

func (p *Presenter) articleCard(a *model.Article) string {
	src := a.Source
	return p.tr.T("article_card",
		esc(a.Name), esc(a.Reference), p.price(a.Price), a.Stock, esc(a.Unit), percent(a.TVA), orDash(&src))
}

func (p *Presenter) movementLine(m *model.Movement) string {
	sign := "+"
	switch m.Type {
	case model.MovementExit:
		sign = "-"
	case model.MovementInventoryReset:
		sign = "="
	}
	return p.tr.T("movement_line", m.Date.Format("02/01/2006 15:04"), p.tr.T("movement_"+string(m.Type)), sign, m.Quantity)
}

func (p *Presenter) companySummary(c *model.Company) string {
	limits := c.Plan.Limits()
	maxClients := p.tr.T("unlimited")
	if limits.MaxClients > 0 {
		maxClients = strconv.Itoa(limits.MaxClients)
	}
	maxQuotes := p.tr.T("unlimited")
	if limits.MaxQuotesPerMonth > 0 {
		maxQuotes = strconv.Itoa(limits.MaxQuotesPerMonth)
	}
	return p.tr.T("subscription_summary",
		esc(c.Name), p.planName(c.Plan), p.tr.T("plan_status_"+string(c.PlanStatus)),
		date(c.PlanStart), date(c.PlanEnd), c.ClientCount, maxClients, maxQuotes)
}

// -----------------------------
// Keyboards
// -----------------------------

func (p *Presenter) mainMenuButton() adapter.InlineButton {
	return p.button("btn_main_menu", cbMainMenu())
}

func (p *Presenter) mainMenu(hasCompany bool) Keyboard {
	if !hasCompany {
		return Keyboard{
			row(p.button("btn_create_company", cbPlanStart())),
		}
	}
	return Keyboard{
		row(p.button("btn_clients", cbEntity(model.EntityClient, "menu", 0)),
			p.button("btn_articles", cbEntity(model.EntityArticle, "menu", 0))),
		row(p.button("btn_subscription", cbSubscription(VerbView))),
	}
}

func (p *Presenter) planKeyboard() Keyboard {
	kb := Keyboard{}
	for _, plan := range model.AllPlans {
		kb = append(kb, row(p.button("btn_plan_"+string(plan), cbPlan(plan))))
	}
	return append(kb, row(p.button("btn_cancel", cbPlanCancel())))
}

func (p *Presenter) entityMenu(kind model.EntityKind) Keyboard {
	k := string(kind)
	return Keyboard{
		row(p.button("btn_"+k+"_add", cbEntity(kind, "add", 0))),
		row(p.button("btn_list", cbEntity(kind, "list", 0)), p.button("btn_search", cbEntity(kind, "search", 0))),
		row(p.mainMenuButton()),
	}
}

func (p *Presenter) backTo(kind model.EntityKind) adapter.InlineButton {
	return p.button("btn_back", cbEntity(kind, "menu", 0))
}

func (p *Presenter) clientKeyboard(id int64) Keyboard {
	return Keyboard{
		row(p.button("btn_edit", cbEntity(model.EntityClient, "edit", id)),
			p.button("btn_delete", cbEntity(model.EntityClient, "delete", id))),
		row(p.backTo(model.EntityClient)),
	}
}

func (p *Presenter) articleKeyboard(id int64) Keyboard {
	return Keyboard{
		row(p.button("btn_edit", cbEntity(model.EntityArticle, "edit", id)),
			p.button("btn_stock", cbEntity(model.EntityArticle, "stock", id))),
		row(p.button("btn_movements", cbEntity(model.EntityArticle, "movements", id)),
			p.button("btn_delete", cbEntity(model.EntityArticle, "delete", id))),
		row(p.backTo(model.EntityArticle)),
	}
}

func (p *Presenter) fieldKeyboard(kind model.EntityKind, id int64) Keyboard {
	fields := model.ClientFields
	if kind == model.EntityArticle {
		fields = model.ArticleFields
	}
	kb := Keyboard{}
	var cur []adapter.InlineButton
	for _, f := range fields {
		cur = append(cur, p.button("field_"+string(kind)+"_"+f, cbEditField(kind, id, f)))
		if len(cur) == 2 {
			kb = append(kb, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		kb = append(kb, cur)
	}
	return append(kb, row(p.button("btn_back", cbEntity(kind, "view", id))))
}

func (p *Presenter) deleteKeyboard(kind model.EntityKind, id int64) Keyboard {
	return Keyboard{row(
		p.button("btn_confirm_delete", cbEntity(kind, "delete", id, "confirm")),
		p.button("btn_cancel", cbEntity(kind, "delete", id, "cancel")),
	)}
}

func (p *Presenter) stockKeyboard(id int64) Keyboard {
	return Keyboard{
		row(p.button("btn_stock_add", cbEntity(model.EntityArticle, "stock", id, string(model.StockAdd))),
			p.button("btn_stock_remove", cbEntity(model.EntityArticle, "stock", id, string(model.StockRemove)))),
		row(p.button("btn_stock_replace", cbEntity(model.EntityArticle, "stock", id, string(model.StockReplace)))),
		row(p.button("btn_back", cbEntity(model.EntityArticle, "view", id))),
	}
}

func (p *Presenter) methodKeyboard(plan model.PlanTier, action model.PaymentAction, cancel string) Keyboard {
	kb := Keyboard{}
	for _, m := range []model.PaymentMethod{model.PaymentMethodMobile, model.PaymentMethodBank} {
		intent := model.PaymentIntent{Plan: plan, Action: action, Method: m}
		kb = append(kb, row(p.button("btn_method_"+string(m), cbPayment(VerbMethod, intent))))
	}
	return append(kb, row(p.button("btn_cancel", cancel)))
}

// listKeyboard renders one button per record, newest first, then a back button.
func listKeyboard[T any](p *Presenter, kind model.EntityKind, items []T, label func(T) string, id func(T) int64) Keyboard {
	kb := make(Keyboard, 0, len(items)+1)
	for _, it := range items {
		kb = append(kb, row(adapter.InlineButton{Text: label(it), Data: cbEntity(kind, "view", id(it))}))
	}
	return append(kb, row(p.backTo(kind)))
}
