package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Party struct {
	ID              int64           `db:"id" json:"id"`
	Role            PartyRole       `db:"role" json:"role"`
	DisplayName     string          `db:"display_name" json:"displayName"`
	HourlyRate      decimal.Decimal `db:"hourly_rate" json:"hourlyRate"`
	TokenHash       string          `db:"token_hash" json:"-"`
	RateLimitPerMin int             `db:"rate_limit_per_min" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}

// Acting returns the explicit acting-party value passed into every lifecycle
// and verification operation. Services never read identity from ambient state.
func (p *Party) Acting() ActingParty {
	return ActingParty{ID: p.ID, Role: p.Role}
}

// ActingParty identifies who is performing an operation.
type ActingParty struct {
	ID   int64
	Role PartyRole
}
