package model

import (
	"fmt"
	"time"

	"telegram-invoicing-bot/internal/domain"
)

// SessionKey scopes conversational state to one user inside one chat.
type SessionKey struct {
	ChatID int64
	UserID int64
}

func (k SessionKey) String() string { return fmt.Sprintf("%d:%d", k.ChatID, k.UserID) }

type EntityKind string

const (
	EntityClient  EntityKind = "client"
	EntityArticle EntityKind = "article"
)

// AwaitingKind tags what the bot expects next from the user.
type AwaitingKind string

const (
	AwaitingNone         AwaitingKind = ""
	AwaitingCompanyData  AwaitingKind = "awaiting_company_data"
	AwaitingClientData   AwaitingKind = "awaiting_client_data"
	AwaitingArticleData  AwaitingKind = "awaiting_article_data"
	AwaitingEditField    AwaitingKind = "editing_field"
	AwaitingStockOp      AwaitingKind = "awaiting_stock_op"
	AwaitingPaymentProof AwaitingKind = "awaiting_payment_proof"
	AwaitingSearch       AwaitingKind = "awaiting_search"
)

// Awaiting is a tagged variant; only the payload fields of Kind are meaningful.
type Awaiting struct {
	Kind     AwaitingKind  `json:"kind,omitempty"`
	Entity   EntityKind    `json:"entity,omitempty"`
	EntityID int64         `json:"entity_id,omitempty"`
	Field    string        `json:"field,omitempty"`
	StockOp  StockOp       `json:"stock_op,omitempty"`
	Payment  PaymentIntent `json:"payment,omitempty"`
}

func AwaitCompanyData() Awaiting { return Awaiting{Kind: AwaitingCompanyData} }
func AwaitClientData() Awaiting  { return Awaiting{Kind: AwaitingClientData} }
func AwaitArticleData() Awaiting { return Awaiting{Kind: AwaitingArticleData} }

func AwaitEditField(entity EntityKind, id int64, field string) Awaiting {
	return Awaiting{Kind: AwaitingEditField, Entity: entity, EntityID: id, Field: field}
}

func AwaitStockOp(articleID int64, op StockOp) Awaiting {
	return Awaiting{Kind: AwaitingStockOp, Entity: EntityArticle, EntityID: articleID, StockOp: op}
}

func AwaitPaymentProof(intent PaymentIntent) Awaiting {
	return Awaiting{Kind: AwaitingPaymentProof, Payment: intent}
}

func AwaitSearch(entity EntityKind) Awaiting {
	return Awaiting{Kind: AwaitingSearch, Entity: entity}
}

func (a Awaiting) IsNone() bool { return a.Kind == AwaitingNone }

// Validate checks that the payload required by Kind is present.
func (a Awaiting) Validate() error {
	switch a.Kind {
	case AwaitingNone, AwaitingCompanyData, AwaitingClientData, AwaitingArticleData:
		return nil
	case AwaitingEditField:
		if a.EntityID <= 0 || a.Field == "" {
			return domain.ErrStateCorruption
		}
		switch a.Entity {
		case EntityClient:
			if !IsClientField(a.Field) {
				return domain.ErrStateCorruption
			}
		case EntityArticle:
			if !IsArticleField(a.Field) {
				return domain.ErrStateCorruption
			}
		default:
			return domain.ErrStateCorruption
		}
		return nil
	case AwaitingStockOp:
		if a.EntityID <= 0 {
			return domain.ErrStateCorruption
		}
		if _, err := ParseStockOp(string(a.StockOp)); err != nil {
			return domain.ErrStateCorruption
		}
		return nil
	case AwaitingPaymentProof:
		if !a.Payment.Valid() {
			return domain.ErrStateCorruption
		}
		return nil
	case AwaitingSearch:
		if a.Entity != EntityClient && a.Entity != EntityArticle {
			return domain.ErrStateCorruption
		}
		return nil
	}
	return domain.ErrStateCorruption
}

// Scratch keys shared by the flows.
const (
	ScratchSelectedPlan = "selected_plan"
	ScratchCompanyDraft = "company_draft"
)

// Session holds the single active awaiting tag and the scratch values of one user.
type Session struct {
	Awaiting  Awaiting          `json:"awaiting"`
	Scratch   map[string]string `json:"scratch,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`

	dirty bool
}

func NewSession() *Session {
	return &Session{Scratch: map[string]string{}}
}

// Begin makes a the only awaiting state, superseding any previous one.
func (s *Session) Begin(a Awaiting) {
	s.Awaiting = a
	s.touch()
}

// Finish drops the awaiting tag but keeps scratch values for the next step.
func (s *Session) Finish() {
	if s.Awaiting.IsNone() {
		return
	}
	s.Awaiting = Awaiting{}
	s.touch()
}

// ClearAll returns the session to idle with empty scratch data.
func (s *Session) ClearAll() {
	s.Awaiting = Awaiting{}
	s.Scratch = map[string]string{}
	s.touch()
}

func (s *Session) Get(name string) (string, bool) {
	v, ok := s.Scratch[name]
	return v, ok
}

func (s *Session) Set(name, value string) {
	if s.Scratch == nil {
		s.Scratch = map[string]string{}
	}
	s.Scratch[name] = value
	s.touch()
}

func (s *Session) Clear(name string) {
	if _, ok := s.Scratch[name]; !ok {
		return
	}
	delete(s.Scratch, name)
	s.touch()
}

func (s *Session) IsIdle() bool { return s.Awaiting.IsNone() && len(s.Scratch) == 0 }

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) MarkClean() { s.dirty = false }

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
	s.dirty = true
}
