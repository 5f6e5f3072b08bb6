package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Сущность Предложения
type Proposal struct {
	ID           int             `db:"id" json:"id"`
	ClientID     int             `db:"client_id" json:"clientId" validate:"required"`
	Product      string          `db:"product" json:"product" validate:"required,max=100"`
	MonthlyValue decimal.Decimal `db:"monthly_value" json:"monthlyValue"`
	Status       ProposalStatus  `db:"status" json:"status"`
	Origin       ProposalOrigin  `db:"origin" json:"origin" validate:"required,oneof=app site api"`
	Version      int             `db:"version" json:"version"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
	DeletedAt    *time.Time      `db:"deleted_at" json:"deletedAt,omitempty"`
}

// Payload аудита: произвольный JSON-объект в колонке jsonb
type Payload map[string]any

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *Payload) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	}
	return fmt.Errorf("payload: unsupported scan type %T", src)
}

// Сущность записи Аудита (append-only, без updated_at)
type AuditRecord struct {
	ID         int        `db:"id" json:"id"`
	ProposalID int        `db:"proposal_id" json:"proposalId"`
	Actor      string     `db:"actor" json:"actor"`
	Event      AuditEvent `db:"event" json:"event"`
	Payload    Payload    `db:"payload" json:"payload"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Сущность Заказа
type Order struct {
	ID         int             `db:"id" json:"id"`
	ProposalID int             `db:"proposal_id" json:"proposalId"`
	Status     OrderStatus     `db:"status" json:"status"`
	TotalValue decimal.Decimal `db:"total_value" json:"totalValue"`
	Notes      *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`
}

// Сущность Клиента (из БД, для связи)
type Client struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" validate:"required,max=100"`
	Email     string    `db:"email" json:"email" validate:"required,email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}
