package model

import "time"

type PlanStatus string

const (
	PlanStatusActive        PlanStatus = "active"
	PlanStatusPendingReview PlanStatus = "pending_review"
	PlanStatusExpired       PlanStatus = "expired"
)

// Company is the tenant; clients, articles and plan limits are scoped to it.
type Company struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Description     string     `json:"description"`
	Phone           string     `json:"phone"`
	Website         string     `json:"website,omitempty"`
	Address         string     `json:"address"`
	Plan            PlanTier   `json:"plan"`
	PlanStatus      PlanStatus `json:"plan_status"`
	IsActive        bool       `json:"is_active"`
	PlanStart       *time.Time `json:"plan_start,omitempty"`
	PlanEnd         *time.Time `json:"plan_end,omitempty"`
	ClientCount     int        `json:"client_count"`
	OwnerTelegramID int64      `json:"owner_telegram_id"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (c *Company) IsZero() bool { return c == nil || c.ID == 0 }

// CompanyDraft is assembled from the onboarding message before the company exists.
type CompanyDraft struct {
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Description string     `json:"description"`
	Phone       string     `json:"phone"`
	Website     string     `json:"website,omitempty"`
	Address     string     `json:"address"`
	Plan        PlanTier   `json:"plan"`
	PlanStatus  PlanStatus `json:"plan_status"`
	IsActive    bool       `json:"is_active"`
	PlanStart   *time.Time `json:"plan_start,omitempty"`
	PlanEnd     *time.Time `json:"plan_end,omitempty"`

	OwnerTelegramID int64  `json:"owner_telegram_id"`
	OwnerUsername   string `json:"owner_username,omitempty"`
}

// Credentials returns the initial admin login generated for a new company.
// The password is the company name.
func (d CompanyDraft) Credentials() (login, password string) {
	return d.Email, d.Name
}

// PlanPeriod returns a one-month plan window starting at the calendar day of now.
func PlanPeriod(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}
