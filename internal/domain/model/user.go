package model

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is the business identity linked to a Telegram account.
type User struct {
	ID         int64  `json:"id"`
	CompanyID  int64  `json:"company_id"`
	Role       Role   `json:"role"`
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

func (u *User) IsZero() bool     { return u == nil || u.ID == 0 }
func (u *User) HasCompany() bool { return u != nil && u.CompanyID != 0 }
