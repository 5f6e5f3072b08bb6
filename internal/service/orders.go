package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"proposals/db"
	"proposals/models"
)

// OrderService создаёт и отменяет заказы по одобренным предложениям.
// Состояние предложения только читается, никогда не мутируется отсюда.
type OrderService struct {
	store Store
	log   *logrus.Logger
}

func NewOrderService(store Store, log *logrus.Logger) *OrderService {
	return &OrderService{store: store, log: log}
}

// PlaceOrder создаёт заказ по одобренному предложению.
// Инвариант: не более одного незакрытого (status != canceled) заказа на
// предложение. Проверка существования выполняется под блокировкой строки
// предложения: два конкурентных PlaceOrder сериализуются на ней, второй
// увидит вставку первого. total_value хранит снимок monthly_value на момент
// создания, без живой ссылки.
func (s *OrderService) PlaceOrder(ctx context.Context, proposalID int, notes *string) (*models.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := tx.LockProposal(ctx, proposalID, false)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Entity: "proposal", ID: proposalID}
		}
		return nil, err
	}
	if locked.Status != models.StatusApproved {
		return nil, businessErr(ReasonNotApproved,
			fmt.Sprintf("only approved proposals can generate an order, proposal %d is %s", proposalID, locked.Status),
			map[string]any{"proposal_id": proposalID, "status": string(locked.Status)})
	}

	active, err := tx.HasActiveOrder(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, businessErr(ReasonDuplicateActiveOrder,
			fmt.Sprintf("proposal %d already has an active order", proposalID),
			map[string]any{"proposal_id": proposalID})
	}

	o := &models.Order{
		ProposalID: proposalID,
		Status:     models.OrderPending,
		TotalValue: locked.MonthlyValue,
		Notes:      notes,
	}
	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":    o.ID,
		"proposal_id": proposalID,
		"total_value": o.TotalValue.StringFixed(2),
	}).Info("order.placed")

	return o, nil
}

// CancelOrder отменяет заказ, если статус это допускает (pending или approved)
func (s *OrderService) CancelOrder(ctx context.Context, orderID int) (*models.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	o, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Entity: "order", ID: orderID}
		}
		return nil, err
	}
	if !o.Status.IsCancellable() {
		return nil, businessErr(ReasonNotCancellable,
			fmt.Sprintf("order %d cannot be canceled in status %s", orderID, o.Status),
			map[string]any{"order_id": orderID, "status": string(o.Status)})
	}

	if err := tx.UpdateOrderStatus(ctx, o, models.OrderCanceled); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":    o.ID,
		"proposal_id": o.ProposalID,
	}).Info("order.canceled")

	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id int) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	return o, err
}

func (s *OrderService) List(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	return s.store.GetOrders(ctx, status, limit, offset)
}
