package model

import (
	"strconv"
	"strings"
	"time"

	"telegram-invoicing-bot/internal/domain"
)

// LowStockThreshold triggers a warning when stock falls below it.
const LowStockThreshold = 5

// MaxStock bounds every stored stock level and every single movement quantity.
const MaxStock int64 = 1_000_000_000

const (
	ArticleFieldName   = "name"
	ArticleFieldPrice  = "price"
	ArticleFieldUnit   = "unit"
	ArticleFieldTVA    = "tva"
	ArticleFieldSource = "source"
)

// Stock is adjusted through stock operations only, never through field edits.
var ArticleFields = []string{ArticleFieldName, ArticleFieldPrice, ArticleFieldUnit, ArticleFieldTVA, ArticleFieldSource}

type Article struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	UserID    int64     `json:"user_id"`
	Reference string    `json:"reference"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int64     `json:"quantity_stock"`
	Unit      string    `json:"unit"`
	TVA       float64   `json:"tva"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

type ArticleDraft struct {
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Stock  int64   `json:"quantity_stock"`
	Unit   string  `json:"unit"`
	TVA    float64 `json:"tva"`
	Source string  `json:"source"`
}

// Matches is a case-insensitive substring test over name, reference, source and unit.
func (a *Article) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, v := range []string{a.Name, a.Reference, a.Source, a.Unit} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

func (a *Article) Field(name string) string {
	switch name {
	case ArticleFieldName:
		return a.Name
	case ArticleFieldPrice:
		return strconv.FormatFloat(a.Price, 'f', -1, 64)
	case ArticleFieldUnit:
		return a.Unit
	case ArticleFieldTVA:
		return strconv.FormatFloat(a.TVA, 'f', -1, 64)
	case ArticleFieldSource:
		return a.Source
	}
	return ""
}

// SetField applies an already validated value. Numeric fields expect the canonical form.
func (a *Article) SetField(name, value string) bool {
	switch name {
	case ArticleFieldName:
		a.Name = value
	case ArticleFieldPrice:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		a.Price = v
	case ArticleFieldUnit:
		a.Unit = value
	case ArticleFieldTVA:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		a.TVA = v
	case ArticleFieldSource:
		a.Source = value
	default:
		return false
	}
	return true
}

func IsArticleField(name string) bool {
	for _, f := range ArticleFields {
		if f == name {
			return true
		}
	}
	return false
}

func IsLowStock(stock int64) bool { return stock < LowStockThreshold }

type MovementType string

const (
	MovementEntry          MovementType = "entry"
	MovementExit           MovementType = "exit"
	MovementInventoryReset MovementType = "inventory-reset"
)

var MovementTypes = []string{string(MovementEntry), string(MovementExit), string(MovementInventoryReset)}

// Movement is an immutable audit row of a stock change.
type Movement struct {
	ID        int64        `json:"id"`
	ArticleID int64        `json:"article_id"`
	UserID    int64        `json:"user_id"`
	Type      MovementType `json:"type"`
	Quantity  int64        `json:"quantity"`
	Date      time.Time    `json:"date"`
}

// Signed returns the stock delta of an entry or exit. Inventory resets carry an absolute value.
func (m Movement) Signed() int64 {
	if m.Type == MovementExit {
		return -m.Quantity
	}
	return m.Quantity
}

type StockOp string

const (
	StockAdd     StockOp = "add"
	StockRemove  StockOp = "remove"
	StockReplace StockOp = "replace"
)

func ParseStockOp(s string) (StockOp, error) {
	switch op := StockOp(strings.ToLower(strings.TrimSpace(s))); op {
	case StockAdd, StockRemove, StockReplace:
		return op, nil
	}
	return "", domain.ErrInvalidArgument
}

func (op StockOp) MovementType() MovementType {
	switch op {
	case StockRemove:
		return MovementExit
	case StockReplace:
		return MovementInventoryReset
	default:
		return MovementEntry
	}
}

// StockOpFor maps a movement type back to the stock operation that produces it.
func StockOpFor(t MovementType) (StockOp, error) {
	switch t {
	case MovementEntry:
		return StockAdd, nil
	case MovementExit:
		return StockRemove, nil
	case MovementInventoryReset:
		return StockReplace, nil
	}
	return "", domain.ErrInvalidArgument
}

// StockChange is the outcome of one stock adjustment.
type StockChange struct {
	Old      int64    `json:"old"`
	New      int64    `json:"new"`
	Movement Movement `json:"movement"`
}

// ApplyStockOp computes the new stock. Removing more than is available fails without
// change, and so does any result above MaxStock.
func ApplyStockOp(current int64, op StockOp, qty int64) (int64, error) {
	if qty < 0 || qty > MaxStock {
		return current, domain.ErrInvalidArgument
	}
	switch op {
	case StockAdd:
		if qty > MaxStock-current {
			return current, domain.ErrInvalidArgument
		}
		return current + qty, nil
	case StockRemove:
		if qty > current {
			return current, domain.ErrInsufficientStock
		}
		return current - qty, nil
	case StockReplace:
		return qty, nil
	}
	return current, domain.ErrInvalidArgument
}
