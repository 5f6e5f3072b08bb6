package models

// Статус Предложения (машина состояний)
type ProposalStatus string

const (
	StatusDraft     ProposalStatus = "draft"
	StatusSubmitted ProposalStatus = "submitted"
	StatusApproved  ProposalStatus = "approved"
	StatusRejected  ProposalStatus = "rejected"
	StatusCanceled  ProposalStatus = "canceled"
)

// IsTerminal возвращает true для статусов, из которых переходы запрещены
func (s ProposalStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCanceled:
		return true
	}
	return false
}

// IsEditable возвращает true, пока поля можно редактировать (только draft)
func (s ProposalStatus) IsEditable() bool {
	return s == StatusDraft
}

// IsCancelable возвращает true, если предложение можно отменить (draft или submitted)
func (s ProposalStatus) IsCancelable() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// AllowedTransition проверяет допустимость перехода from → to.
// Разрешено: draft→submitted, submitted→approved, submitted→rejected,
// draft→canceled, submitted→canceled. Всё остальное запрещено,
// включая самопереходы и любые переходы из терминального статуса.
func AllowedTransition(from, to ProposalStatus) bool {
	switch from {
	case StatusDraft:
		return to == StatusSubmitted || to == StatusCanceled
	case StatusSubmitted:
		return to == StatusApproved || to == StatusRejected || to == StatusCanceled
	}
	return false
}

// Происхождение Предложения (канал создания)
type ProposalOrigin string

const (
	OriginApp  ProposalOrigin = "app"
	OriginSite ProposalOrigin = "site"
	OriginAPI  ProposalOrigin = "api"
)

func (o ProposalOrigin) Valid() bool {
	switch o {
	case OriginApp, OriginSite, OriginAPI:
		return true
	}
	return false
}

// Статус Заказа
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderRejected  OrderStatus = "rejected"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCanceled  OrderStatus = "canceled"
)

// IsCancellable возвращает true, пока заказ ещё можно отменить
func (s OrderStatus) IsCancellable() bool {
	return s == OrderPending || s == OrderApproved
}

// IsTerminal возвращает true для статусов, которые больше не меняются
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderDelivered, OrderCanceled, OrderRejected:
		return true
	}
	return false
}

// Тип события в журнале аудита
type AuditEvent string

const (
	AuditCreated        AuditEvent = "created"
	AuditUpdatedFields  AuditEvent = "updated_fields"
	AuditStatusChanged  AuditEvent = "status_changed"
	AuditDeletedLogical AuditEvent = "deleted_logical"
)
