package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	"proposals/models"
)

// Tx представляет транзакцию с блокировкой строк (SELECT ... FOR UPDATE).
// Все мутации предложений и заказов проходят через Tx, чтобы запись
// аудита и изменение состояния попадали в одну транзакцию: откат
// отменяет и то и другое вместе.
type Tx struct {
	tx *sqlx.Tx
}

func (s *Storage) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback безопасен после Commit, ошибка игнорируется
func (t *Tx) Rollback() {
	_ = t.tx.Rollback()
}

// LockProposal читает строку предложения под эксклюзивной блокировкой.
// Конкурентные LockProposal по тому же id ждут конца транзакции.
func (t *Tx) LockProposal(ctx context.Context, id int, includeDeleted bool) (*models.Proposal, error) {
	p := &models.Proposal{}
	query := `SELECT * FROM proposals WHERE id=$1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` FOR UPDATE`
	err := t.tx.GetContext(ctx, p, query, id)
	return p, notFound(err)
}

// InsertProposal создаёт предложение. Статус и версия задаются SQL-ом
// (draft, 1), входные значения вызывающего игнорируются.
func (t *Tx) InsertProposal(ctx context.Context, p *models.Proposal) error {
	p.Status = models.StatusDraft
	p.Version = 1
	query := `
        INSERT INTO proposals (client_id, product, monthly_value, status, origin, version)
        VALUES ($1, $2, $3, $4, $5, 1)
        RETURNING id, created_at, updated_at`
	return t.tx.QueryRowContext(ctx, query,
		p.ClientID, p.Product, p.MonthlyValue, p.Status, p.Origin).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProposal сравнивает версию, прочитанную под блокировкой, с
// ожидаемой версией вызывающего. При расхождении возвращается ErrStaleVersion,
// запись не выполняется. При совпадении пишет изменяемые поля и
// инкрементирует версию ровно на 1.
//
// Сравнение идёт именно по значению из p (снимок под блокировкой), а не
// по значению, закэшированному до её взятия: это закрывает гонку, когда
// два запроса одновременно прочитали version=1 и оба считают себя правыми.
func (t *Tx) UpdateProposal(ctx context.Context, p *models.Proposal, expectedVersion int) error {
	if p.Version != expectedVersion {
		return ErrStaleVersion
	}
	p.Version++
	query := `
        UPDATE proposals
        SET product=$1, monthly_value=$2, status=$3, version=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return t.tx.QueryRowContext(ctx, query,
		p.Product, p.MonthlyValue, p.Status, p.Version, p.ID).
		Scan(&p.UpdatedAt)
}

// SoftDeleteProposal помечает предложение удалённым. Строка остаётся
// в таблице: записи аудита ссылаются на неё и после удаления.
func (t *Tx) SoftDeleteProposal(ctx context.Context, p *models.Proposal) error {
	query := `
        UPDATE proposals
        SET deleted_at=NOW(), updated_at=NOW()
        WHERE id=$1
        RETURNING deleted_at, updated_at`
	return t.tx.QueryRowContext(ctx, query, p.ID).
		Scan(&p.DeletedAt, &p.UpdatedAt)
}

// InsertAudit добавляет запись аудита в ту же транзакцию, что и мутация.
// Таблица append-only: UPDATE и DELETE по ней не выполняются никогда.
func (t *Tx) InsertAudit(ctx context.Context, rec *models.AuditRecord) error {
	query := `
        INSERT INTO proposal_audit (proposal_id, actor, event, payload)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	return t.tx.QueryRowContext(ctx, query,
		rec.ProposalID, rec.Actor, rec.Event, rec.Payload).
		Scan(&rec.ID, &rec.CreatedAt)
}

// HasActiveOrder проверяет наличие незакрытого заказа по предложению.
// Вызывается после LockProposal: блокировка строки предложения
// сериализует конкурентные placeOrder, частичный уникальный индекс
// в миграции страхует на уровне БД.
func (t *Tx) HasActiveOrder(ctx context.Context, proposalID int) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM orders WHERE proposal_id=$1 AND status <> 'canceled'`
	err := t.tx.GetContext(ctx, &count, query, proposalID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *Tx) InsertOrder(ctx context.Context, o *models.Order) error {
	query := `
        INSERT INTO orders (proposal_id, status, total_value, notes)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`
	return t.tx.QueryRowContext(ctx, query,
		o.ProposalID, o.Status, o.TotalValue, o.Notes).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (t *Tx) LockOrder(ctx context.Context, id int) (*models.Order, error) {
	o := &models.Order{}
	query := `SELECT * FROM orders WHERE id=$1 FOR UPDATE`
	err := t.tx.GetContext(ctx, o, query, id)
	return o, notFound(err)
}

func (t *Tx) UpdateOrderStatus(ctx context.Context, o *models.Order, status models.OrderStatus) error {
	query := `
        UPDATE orders
        SET status=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING updated_at`
	if err := t.tx.QueryRowContext(ctx, query, status, o.ID).Scan(&o.UpdatedAt); err != nil {
		return err
	}
	o.Status = status
	return nil
}
