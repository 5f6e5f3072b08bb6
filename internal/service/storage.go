package service

import (
	"context"

	"proposals/db"
	"proposals/models"
)

// Tx задаёт критическую секцию над заблокированными строками.
// Реализуется db.Tx; в тестах подменяется in-memory двойником.
type Tx interface {
	LockProposal(ctx context.Context, id int, includeDeleted bool) (*models.Proposal, error)
	InsertProposal(ctx context.Context, p *models.Proposal) error
	UpdateProposal(ctx context.Context, p *models.Proposal, expectedVersion int) error
	SoftDeleteProposal(ctx context.Context, p *models.Proposal) error
	InsertAudit(ctx context.Context, rec *models.AuditRecord) error

	HasActiveOrder(ctx context.Context, proposalID int) (bool, error)
	InsertOrder(ctx context.Context, o *models.Order) error
	LockOrder(ctx context.Context, id int) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, o *models.Order, status models.OrderStatus) error

	Commit() error
	Rollback()
}

type Store interface {
	Begin(ctx context.Context) (Tx, error)

	GetProposal(ctx context.Context, id int, includeDeleted bool) (*models.Proposal, error)
	GetProposals(ctx context.Context, f db.ProposalFilter) ([]models.Proposal, error)
	GetAuditRecords(ctx context.Context, proposalID int) ([]models.AuditRecord, error)

	GetOrder(ctx context.Context, id int) (*models.Order, error)
	GetOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error)

	CreateClient(ctx context.Context, c *models.Client) error
	GetClient(ctx context.Context, id int) (*models.Client, error)
	ClientExists(ctx context.Context, id int) (bool, error)
}

// SQLStore адаптирует *db.Storage к интерфейсу Store
// (Begin у db.Storage возвращает конкретный *db.Tx).
type SQLStore struct {
	*db.Storage
}

func NewSQLStore(s *db.Storage) SQLStore {
	return SQLStore{Storage: s}
}

func (s SQLStore) Begin(ctx context.Context) (Tx, error) {
	return s.Storage.Begin(ctx)
}
