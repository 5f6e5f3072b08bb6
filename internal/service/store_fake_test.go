package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proposals/db"
	"proposals/internal/service"
	"proposals/models"
)

// fakeStore реализует service.Store в памяти. Блокировка строк
// эмулируется mutex-ом на строку: LockProposal/LockOrder держат его до
// Commit/Rollback, как SELECT ... FOR UPDATE держит блокировку до конца
// транзакции. Мутации накапливаются и применяются только на Commit.
type fakeStore struct {
	mu        sync.Mutex
	proposals map[int]models.Proposal
	audits    []models.AuditRecord
	orders    map[int]models.Order
	clients   map[int]models.Client

	rowLocks map[string]*sync.Mutex

	nextProposal int
	nextAudit    int
	nextOrder    int
	nextClient   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		proposals:    map[int]models.Proposal{},
		orders:       map[int]models.Order{},
		clients:      map[int]models.Client{},
		rowLocks:     map[string]*sync.Mutex{},
		nextProposal: 1,
		nextAudit:    1,
		nextOrder:    1,
		nextClient:   1,
	}
}

func (f *fakeStore) rowLock(key string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rowLocks[key]
	if !ok {
		m = &sync.Mutex{}
		f.rowLocks[key] = m
	}
	return m
}

func (f *fakeStore) Begin(ctx context.Context) (service.Tx, error) {
	return &fakeTx{s: f}, nil
}

func (f *fakeStore) GetProposal(ctx context.Context, id int, includeDeleted bool) (*models.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.proposals[id]
	if !ok || (p.DeletedAt != nil && !includeDeleted) {
		return nil, db.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (f *fakeStore) GetProposals(ctx context.Context, filter db.ProposalFilter) ([]models.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Proposal
	for _, p := range f.proposals {
		if p.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.ClientID > 0 && p.ClientID != filter.ClientID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetAuditRecords(ctx context.Context, proposalID int) ([]models.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AuditRecord
	for _, rec := range f.audits {
		if rec.ProposalID == proposalID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (f *fakeStore) GetOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) CreateClient(ctx context.Context, c *models.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.nextClient
	f.nextClient++
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.clients[c.ID] = *c
	return nil
}

func (f *fakeStore) GetClient(ctx context.Context, id int) (*models.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (f *fakeStore) ClientExists(ctx context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.clients[id]
	return ok, nil
}

// fakeTx реализует транзакцию поверх fakeStore
type fakeTx struct {
	s      *fakeStore
	held   []*sync.Mutex
	staged []func(*fakeStore)
	done   bool
}

func (t *fakeTx) lockRow(key string) {
	m := t.s.rowLock(key)
	m.Lock()
	t.held = append(t.held, m)
}

func (t *fakeTx) LockProposal(ctx context.Context, id int, includeDeleted bool) (*models.Proposal, error) {
	t.lockRow(fmt.Sprintf("proposal:%d", id))
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.proposals[id]
	if !ok || (p.DeletedAt != nil && !includeDeleted) {
		return nil, db.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (t *fakeTx) InsertProposal(ctx context.Context, p *models.Proposal) error {
	t.s.mu.Lock()
	p.ID = t.s.nextProposal
	t.s.nextProposal++
	t.s.mu.Unlock()

	p.Status = models.StatusDraft
	p.Version = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	row := *p
	t.staged = append(t.staged, func(s *fakeStore) {
		s.proposals[row.ID] = row
	})
	return nil
}

func (t *fakeTx) UpdateProposal(ctx context.Context, p *models.Proposal, expectedVersion int) error {
	if p.Version != expectedVersion {
		return db.ErrStaleVersion
	}
	p.Version++
	p.UpdatedAt = time.Now()

	row := *p
	t.staged = append(t.staged, func(s *fakeStore) {
		s.proposals[row.ID] = row
	})
	return nil
}

func (t *fakeTx) SoftDeleteProposal(ctx context.Context, p *models.Proposal) error {
	now := time.Now()
	p.DeletedAt = &now
	p.UpdatedAt = now

	row := *p
	t.staged = append(t.staged, func(s *fakeStore) {
		s.proposals[row.ID] = row
	})
	return nil
}

func (t *fakeTx) InsertAudit(ctx context.Context, rec *models.AuditRecord) error {
	t.s.mu.Lock()
	rec.ID = t.s.nextAudit
	t.s.nextAudit++
	t.s.mu.Unlock()

	rec.CreatedAt = time.Now()
	row := *rec
	t.staged = append(t.staged, func(s *fakeStore) {
		s.audits = append(s.audits, row)
	})
	return nil
}

func (t *fakeTx) HasActiveOrder(ctx context.Context, proposalID int) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, o := range t.s.orders {
		if o.ProposalID == proposalID && o.Status != models.OrderCanceled {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, o *models.Order) error {
	t.s.mu.Lock()
	o.ID = t.s.nextOrder
	t.s.nextOrder++
	t.s.mu.Unlock()

	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	row := *o
	t.staged = append(t.staged, func(s *fakeStore) {
		s.orders[row.ID] = row
	})
	return nil
}

func (t *fakeTx) LockOrder(ctx context.Context, id int) (*models.Order, error) {
	t.lockRow(fmt.Sprintf("order:%d", id))
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o, ok := t.s.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (t *fakeTx) UpdateOrderStatus(ctx context.Context, o *models.Order, status models.OrderStatus) error {
	o.Status = status
	o.UpdatedAt = time.Now()
	row := *o
	t.staged = append(t.staged, func(s *fakeStore) {
		s.orders[row.ID] = row
	})
	return nil
}

func (t *fakeTx) Commit() error {
	if t.done {
		return nil
	}
	t.s.mu.Lock()
	for _, apply := range t.staged {
		apply(t.s)
	}
	t.s.mu.Unlock()
	t.finish()
	return nil
}

func (t *fakeTx) Rollback() {
	if t.done {
		return
	}
	t.staged = nil
	t.finish()
}

func (t *fakeTx) finish() {
	t.done = true
	for _, m := range t.held {
		m.Unlock()
	}
	t.held = nil
}
