package application

import (
	"strconv"
	"strings"

	"telegram-invoicing-bot/internal/domain/model"
)

// CallbackDomain is the first segment of callback data.
type CallbackDomain string

const (
	DomainUnknown      CallbackDomain = ""
	DomainMenu         CallbackDomain = "menu"
	DomainPlan         CallbackDomain = "plan"
	DomainClient       CallbackDomain = "client"
	DomainArticle      CallbackDomain = "article"
	DomainSubscription CallbackDomain = "subscription"
	DomainPayment      CallbackDomain = "payment"
)

type Verb string

const (
	VerbMain          Verb = "main"
	VerbSelect        Verb = "select"
	VerbCancel        Verb = "cancel"
	VerbMenu          Verb = "menu"
	VerbAdd           Verb = "add"
	VerbList          Verb = "list"
	VerbSearch        Verb = "search"
	VerbView          Verb = "view"
	VerbEdit          Verb = "edit"
	VerbEditField     Verb = "edit_field"
	VerbDelete        Verb = "delete"
	VerbDeleteConfirm Verb = "delete_confirm"
	VerbDeleteCancel  Verb = "delete_cancel"
	VerbStock         Verb = "stock"
	VerbStockOp       Verb = "stock_op"
	VerbMovements     Verb = "movements"
	VerbRenew         Verb = "renew"
	VerbUpgrade       Verb = "upgrade"
	VerbUpgradeTo     Verb = "upgrade_to"
	VerbMethod        Verb = "method"
	VerbConfirm       Verb = "confirm"
)

// Callback is the parsed form of inline keyboard data. Only the fields relevant
// to Domain and Verb are set; anything unparseable has Domain == DomainUnknown.
type Callback struct {
	Domain CallbackDomain
	Verb   Verb
	ID     int64
	Field  string
	Op     model.StockOp
	Plan   model.PlanTier
	Intent model.PaymentIntent
}

func (c Callback) Known() bool { return c.Domain != DomainUnknown }

// Route is a low-cardinality label for metrics.
func (c Callback) Route() string {
	if !c.Known() {
		return "unknown"
	}
	return string(c.Domain) + "_" + string(c.Verb)
}

// Entity maps client/article callbacks to their entity kind.
func (c Callback) Entity() model.EntityKind {
	if c.Domain == DomainArticle {
		return model.EntityArticle
	}
	return model.EntityClient
}

var unknownCallback = Callback{}

// ParseCallback validates callback data once at the boundary. Trailing segments
// beyond what a variant needs are ignored.
func ParseCallback(data string) Callback {
	data = strings.TrimSpace(data)
	if rest, ok := strings.CutPrefix(data, "plan:"); ok {
		return parsePlan(rest)
	}
	if data == "menu_main" {
		return Callback{Domain: DomainMenu, Verb: VerbMain}
	}

	parts := strings.Split(data, "_")
	if len(parts) < 2 {
		return unknownCallback
	}
	switch parts[0] {
	case "client":
		return parseEntity(DomainClient, parts[1:])
	case "article":
		return parseEntity(DomainArticle, parts[1:])
	case "subscription":
		return parseSubscription(parts[1:])
	case "payment":
		return parsePayment(parts[1:])
	}
	return unknownCallback
}

func parsePlan(rest string) Callback {
	switch rest {
	case "cancel":
		return Callback{Domain: DomainPlan, Verb: VerbCancel}
	case "start":
		return Callback{Domain: DomainPlan, Verb: VerbMenu}
	}
	plan, err := model.ParsePlanTier(rest)
	if err != nil {
		return unknownCallback
	}
	return Callback{Domain: DomainPlan, Verb: VerbSelect, Plan: plan}
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

// seg returns parts[i] or "" when absent.
func seg(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func parseEntity(domain CallbackDomain, parts []string) Callback {
	cb := Callback{Domain: domain}
	isField := model.IsClientField
	if domain == DomainArticle {
		isField = model.IsArticleField
	}

	switch v := Verb(parts[0]); v {
	case VerbMenu, VerbAdd, VerbList, VerbSearch:
		cb.Verb = v
		return cb

	case VerbView:
		cb.Verb = v
	case VerbMovements, VerbStock:
		if domain != DomainArticle {
			return unknownCallback
		}
		cb.Verb = v
		if v == VerbStock {
			if op, err := model.ParseStockOp(seg(parts, 1)); err == nil {
				cb.Verb, cb.Op = VerbStockOp, op
				parts = parts[1:]
			}
		}
	case VerbEdit:
		cb.Verb = v
		if seg(parts, 1) == "field" {
			field := seg(parts, 3)
			if !isField(field) {
				return unknownCallback
			}
			cb.Verb, cb.Field = VerbEditField, field
			parts = parts[1:]
		}
	case VerbDelete:
		cb.Verb = v
		switch seg(parts, 1) {
		case "confirm":
			cb.Verb = VerbDeleteConfirm
			parts = parts[1:]
		case "cancel":
			cb.Verb = VerbDeleteCancel
			parts = parts[1:]
		}
	default:
		return unknownCallback
	}

	id, ok := parseID(seg(parts, 1))
	if !ok {
		return unknownCallback
	}
	cb.ID = id
	return cb
}

func parseSubscription(parts []string) Callback {
	cb := Callback{Domain: DomainSubscription}
	switch v := Verb(parts[0]); v {
	case VerbView, VerbRenew:
		cb.Verb = v
		return cb
	case VerbUpgrade:
		cb.Verb = v
		if len(parts) > 1 {
			plan, err := model.ParsePlanTier(parts[1])
			if err != nil || !plan.IsPaid() {
				return unknownCallback
			}
			cb.Verb, cb.Plan = VerbUpgradeTo, plan
		}
		return cb
	}
	return unknownCallback
}

func parsePayment(parts []string) Callback {
	v := Verb(parts[0])
	if v != VerbMethod && v != VerbConfirm {
		return unknownCallback
	}
	if len(parts) < 4 {
		return unknownCallback
	}
	plan, err := model.ParsePlanTier(parts[1])
	if err != nil {
		return unknownCallback
	}
	action, err := model.ParsePaymentAction(parts[2])
	if err != nil {
		return unknownCallback
	}
	method, err := model.ParsePaymentMethod(parts[3])
	if err != nil {
		return unknownCallback
	}
	intent := model.PaymentIntent{Plan: plan, Action: action, Method: method}
	if !intent.Valid() {
		return unknownCallback
	}
	return Callback{Domain: DomainPayment, Verb: v, Plan: plan, Intent: intent}
}

// Callback data builders; the inverse of ParseCallback.

func cbMainMenu() string                  { return "menu_main" }
func cbPlan(p model.PlanTier) string      { return "plan:" + string(p) }
func cbPlanCancel() string                { return "plan:cancel" }
func cbPlanStart() string                 { return "plan:start" }
func cbSubscription(v Verb) string        { return "subscription_" + string(v) }
func cbUpgradeTo(p model.PlanTier) string { return "subscription_upgrade_" + string(p) }

func cbEntity(kind model.EntityKind, verb string, id int64, extra ...string) string {
	parts := []string{string(kind), verb}
	parts = append(parts, extra...)
	if id > 0 {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, "_")
}

func cbEditField(kind model.EntityKind, id int64, field string) string {
	return cbEntity(kind, "edit_field", id) + "_" + field
}

func cbPayment(v Verb, i model.PaymentIntent) string {
	return strings.Join([]string{"payment", string(v), string(i.Plan), string(i.Action), string(i.Method)}, "_")
}
