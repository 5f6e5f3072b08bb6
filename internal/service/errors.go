package service

import "fmt"

// Причина ошибки бизнес-правила
type BusinessReason string

const (
	ReasonInvalidTransition    BusinessReason = "invalid_transition"
	ReasonTerminalState        BusinessReason = "terminal_state"
	ReasonNotApproved          BusinessReason = "not_approved"
	ReasonDuplicateActiveOrder BusinessReason = "duplicate_active_order"
	ReasonNotCancellable       BusinessReason = "not_cancellable"
)

// BusinessError: операция нарушает доменное правило в текущем состоянии.
// Context содержит id сущности и наблюдаемое состояние, чтобы логировать
// конфликт без повторного чтения из БД.
type BusinessError struct {
	Reason  BusinessReason
	Message string
	Context map[string]any
}

func (e *BusinessError) Error() string {
	return e.Message
}

func businessErr(reason BusinessReason, msg string, ctx map[string]any) *BusinessError {
	return &BusinessError{Reason: reason, Message: msg, Context: ctx}
}

// ConcurrencyError: версия вызывающего разошлась с версией под блокировкой
type ConcurrencyError struct {
	Message string
	Context map[string]any
}

func (e *ConcurrencyError) Error() string {
	return e.Message
}

func staleVersionErr(proposalID, expected, actual int) *ConcurrencyError {
	return &ConcurrencyError{
		Message: fmt.Sprintf("proposal %d was modified by another request: expected version %d, found %d", proposalID, expected, actual),
		Context: map[string]any{
			"proposal_id":      proposalID,
			"expected_version": expected,
			"actual_version":   actual,
		},
	}
}

// NotFoundError: сущность не существует или удалена логически
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}
