package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"proposals/db"
	"proposals/models"
)

// ProposalService содержит всю бизнес-логику жизненного цикла предложения:
// создание, обновление с оптимистичной блокировкой, машина статусов,
// логическое удаление. Каждая мутация транзакционна и оставляет ровно
// одну запись аудита.
type ProposalService struct {
	store Store
	audit auditTrail
	log   *logrus.Logger
}

func NewProposalService(store Store, log *logrus.Logger) *ProposalService {
	return &ProposalService{store: store, log: log}
}

type CreateProposalInput struct {
	ClientID     int
	Product      string
	MonthlyValue decimal.Decimal
	Origin       models.ProposalOrigin
}

type UpdateProposalInput struct {
	ExpectedVersion int
	Product         *string
	MonthlyValue    *decimal.Decimal
}

// Create создаёт предложение, принудительно в статусе draft с версией 1;
// статус и версия из входных данных игнорируются.
func (s *ProposalService) Create(ctx context.Context, actor string, in CreateProposalInput) (*models.Proposal, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p := &models.Proposal{
		ClientID:     in.ClientID,
		Product:      in.Product,
		MonthlyValue: in.MonthlyValue,
		Origin:       in.Origin,
	}
	if err := tx.InsertProposal(ctx, p); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, tx, p.ID, actor, models.AuditCreated, snapshotPayload(p)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"client_id":   p.ClientID,
		"origin":      p.Origin,
	}).Info("proposal.created")

	return p, nil
}

// Get возвращает предложение или NotFoundError
func (s *ProposalService) Get(ctx context.Context, id int) (*models.Proposal, error) {
	p, err := s.store.GetProposal(ctx, id, false)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{Entity: "proposal", ID: id}
	}
	return p, err
}

func (s *ProposalService) List(ctx context.Context, f db.ProposalFilter) ([]models.Proposal, error) {
	return s.store.GetProposals(ctx, f)
}

// AuditLog возвращает журнал аудита предложения. Журнал доступен и после
// логического удаления предложения.
func (s *ProposalService) AuditLog(ctx context.Context, proposalID int) ([]models.AuditRecord, error) {
	if _, err := s.store.GetProposal(ctx, proposalID, true); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Entity: "proposal", ID: proposalID}
		}
		return nil, err
	}
	return s.store.GetAuditRecords(ctx, proposalID)
}

// UpdateContent обновляет поля предложения с оптимистичной блокировкой.
//
// Порядок:
//  1. Терминальный статус → BusinessError(terminal_state).
//  2. Пустой patch (ни одного поля) → no-op: версия не растёт, аудит не пишется.
//  3. Строка блокируется, версия сверяется под блокировкой с ExpectedVersion;
//     расхождение → ConcurrencyError(stale_version), записи нет. Сверка идёт
//     до проверки изменённых полей: patch с теми же значениями, но устаревшей
//     версией, это конфликт, а не no-op.
//  4. Если после patch-а ни одно поле не изменилось, выходим без записи.
//  5. Изменённые поля пишутся, версия +1, аудит updated_fields в одной транзакции.
func (s *ProposalService) UpdateContent(ctx context.Context, actor string, id int, in UpdateProposalInput) (*models.Proposal, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, terminalErr(current)
	}
	if in.Product == nil && in.MonthlyValue == nil {
		return current, nil
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := tx.LockProposal(ctx, id, false)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Entity: "proposal", ID: id}
		}
		return nil, err
	}
	// повторная проверка по свежему снимку под блокировкой: параллельный
	// approve мог завершиться между первой проверкой и взятием блокировки
	if locked.Status.IsTerminal() {
		return nil, terminalErr(locked)
	}
	if locked.Version != in.ExpectedVersion {
		s.log.WithFields(logrus.Fields{
			"proposal_id":      id,
			"expected_version": in.ExpectedVersion,
			"actual_version":   locked.Version,
		}).Warn("proposal.concurrency_conflict")
		return nil, staleVersionErr(id, in.ExpectedVersion, locked.Version)
	}

	before := *locked
	if in.Product != nil {
		locked.Product = *in.Product
	}
	if in.MonthlyValue != nil {
		locked.MonthlyValue = *in.MonthlyValue
	}

	changed := changedPayload(&before, locked)
	if len(changed) == 0 {
		// присланные значения совпали с текущими, не плодим пустые версии
		return &before, nil
	}

	if err := tx.UpdateProposal(ctx, locked, in.ExpectedVersion); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, tx, id, actor, models.AuditUpdatedFields, changed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"proposal_id": id,
		"version":     locked.Version,
	}).Info("proposal.updated")

	return locked, nil
}

// Submit: draft → submitted
func (s *ProposalService) Submit(ctx context.Context, actor string, id int) (*models.Proposal, error) {
	return s.transition(ctx, actor, id, models.StatusSubmitted)
}

// Approve: submitted → approved
func (s *ProposalService) Approve(ctx context.Context, actor string, id int) (*models.Proposal, error) {
	return s.transition(ctx, actor, id, models.StatusApproved)
}

// Reject: submitted → rejected
func (s *ProposalService) Reject(ctx context.Context, actor string, id int) (*models.Proposal, error) {
	return s.transition(ctx, actor, id, models.StatusRejected)
}

// Cancel: draft|submitted → canceled
func (s *ProposalService) Cancel(ctx context.Context, actor string, id int) (*models.Proposal, error) {
	return s.transition(ctx, actor, id, models.StatusCanceled)
}

// transitionGuard проверяет допустимость перехода по таблице
// models.AllowedTransition: легальность переходов задана в одном месте.
// Недопустимая отмена (из терминального статуса) отдаёт terminal_state,
// остальные недопустимые переходы отдают invalid_transition.
func transitionGuard(p *models.Proposal, to models.ProposalStatus) error {
	if models.AllowedTransition(p.Status, to) {
		return nil
	}
	if to == models.StatusCanceled {
		return terminalErr(p)
	}
	return businessErr(ReasonInvalidTransition,
		fmt.Sprintf("proposal %d cannot transition from %s to %s", p.ID, p.Status, to),
		transitionCtx(p, to))
}

// transition реализует общий алгоритм перехода статуса.
//
// Предусловие проверяется дважды: по снимку до блокировки (быстрый отказ)
// и по снимку под блокировкой, иначе два конкурентных перехода могли бы
// оба пройти первую проверку до того, как один из них зафиксируется.
// Ожидаемая версия для записи всегда берётся из снимка под блокировкой,
// а не присланная клиентом: переход статуса не конфликтует с версионным
// дрейфом от посторонних правок полей.
func (s *ProposalService) transition(ctx context.Context, actor string, id int, to models.ProposalStatus) (*models.Proposal, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transitionGuard(current, to); err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := tx.LockProposal(ctx, id, false)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Entity: "proposal", ID: id}
		}
		return nil, err
	}
	if err := transitionGuard(locked, to); err != nil {
		return nil, err
	}

	prev := locked.Status
	locked.Status = to
	if err := tx.UpdateProposal(ctx, locked, locked.Version); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, tx, id, actor, models.AuditStatusChanged, models.Payload{
		"previous_status": string(prev),
		"new_status":      string(to),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"proposal_id": id,
		"from":        prev,
		"to":          to,
		"version":     locked.Version,
	}).Info("proposal.status_changed")

	return locked, nil
}

// Delete помечает предложение удалённым. Строка и её журнал аудита
// сохраняются; уже созданные заказы не отменяются каскадно.
func (s *ProposalService) Delete(ctx context.Context, actor string, id int) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	locked, err := tx.LockProposal(ctx, id, false)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &NotFoundError{Entity: "proposal", ID: id}
		}
		return err
	}
	if err := tx.SoftDeleteProposal(ctx, locked); err != nil {
		return err
	}
	if err := s.audit.Record(ctx, tx, id, actor, models.AuditDeletedLogical, models.Payload{
		"status": string(locked.Status),
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"proposal_id": id,
		"status":      locked.Status,
	}).Info("proposal.deleted")

	return nil
}

func terminalErr(p *models.Proposal) *BusinessError {
	return businessErr(ReasonTerminalState,
		fmt.Sprintf("proposal %d is in terminal state %s and cannot be modified", p.ID, p.Status),
		map[string]any{"proposal_id": p.ID, "status": string(p.Status)})
}

func transitionCtx(p *models.Proposal, to models.ProposalStatus) map[string]any {
	return map[string]any{
		"proposal_id": p.ID,
		"from":        string(p.Status),
		"to":          string(to),
	}
}
