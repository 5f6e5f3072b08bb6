package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"proposals/models"
)

var (
	// ErrNotFound: запись не существует (или удалена логически)
	ErrNotFound = errors.New("record not found")
	// ErrStaleVersion: версия клиента отстала от версии в БД
	ErrStaleVersion = errors.New("stale version")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Client (Клиент)

func (s *Storage) CreateClient(ctx context.Context, c *models.Client) error {
	query := `
        INSERT INTO clients (name, email)
        VALUES ($1, $2)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query, c.Name, c.Email).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (s *Storage) GetClient(ctx context.Context, id int) (*models.Client, error) {
	c := &models.Client{}
	query := `SELECT * FROM clients WHERE id=$1`
	err := s.db.GetContext(ctx, c, query, id)
	return c, notFound(err)
}

func (s *Storage) ClientExists(ctx context.Context, id int) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM clients WHERE id=$1`
	err := s.db.GetContext(ctx, &count, query, id)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Proposal (Предложение): только чтение, все мутации идут через Tx

func (s *Storage) GetProposal(ctx context.Context, id int, includeDeleted bool) (*models.Proposal, error) {
	p := &models.Proposal{}
	query := `SELECT * FROM proposals WHERE id=$1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	err := s.db.GetContext(ctx, p, query, id)
	return p, notFound(err)
}

// Фильтр списка предложений
type ProposalFilter struct {
	Status   models.ProposalStatus
	ClientID int
	Limit    int
	Offset   int
}

func (s *Storage) GetProposals(ctx context.Context, f ProposalFilter) ([]models.Proposal, error) {
	baseQuery := `SELECT * FROM proposals`
	conds := []string{"deleted_at IS NULL"}
	var args []interface{}

	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ClientID > 0 {
		args = append(args, f.ClientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}

	query := baseQuery + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)

	proposals := []models.Proposal{}
	err := s.db.SelectContext(ctx, &proposals, query, args...)
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

// AuditRecord (журнал аудита): append-only, отсюда только чтение

func (s *Storage) GetAuditRecords(ctx context.Context, proposalID int) ([]models.AuditRecord, error) {
	records := []models.AuditRecord{}
	query := `
        SELECT * FROM proposal_audit
        WHERE proposal_id = $1
        ORDER BY created_at ASC, id ASC`
	err := s.db.SelectContext(ctx, &records, query, proposalID)
	return records, err
}

// Order (Заказ): только чтение, мутации через Tx

func (s *Storage) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	o := &models.Order{}
	query := `SELECT * FROM orders WHERE id=$1`
	err := s.db.GetContext(ctx, o, query, id)
	return o, notFound(err)
}

func (s *Storage) GetOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	baseQuery := `SELECT * FROM orders`
	var args []interface{}

	if status != "" {
		args = append(args, status)
		baseQuery += " WHERE status = $1"
	}
	query := baseQuery + " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, args...)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
