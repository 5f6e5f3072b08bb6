package service

import (
	"context"

	"proposals/models"
)

// auditTrail пишет записи аудита внутри транзакции мутации.
// Вызывается только из сервисов жизненного цикла: журнал отражает
// ровно активность машины состояний, по одной записи на мутацию.
// Ошибка записи аудита роняет всю транзакцию: мутация без записи
// аудита не должна зафиксироваться.
type auditTrail struct{}

func (auditTrail) Record(ctx context.Context, tx Tx, proposalID int, actor string, event models.AuditEvent, payload models.Payload) error {
	return tx.InsertAudit(ctx, &models.AuditRecord{
		ProposalID: proposalID,
		Actor:      actor,
		Event:      event,
		Payload:    payload,
	})
}

// snapshotPayload собирает полный снимок предложения для события created
func snapshotPayload(p *models.Proposal) models.Payload {
	return models.Payload{
		"client_id":     p.ClientID,
		"product":       p.Product,
		"monthly_value": p.MonthlyValue.StringFixed(2),
		"status":        string(p.Status),
		"origin":        string(p.Origin),
		"version":       p.Version,
	}
}

// changedPayload собирает только реально изменившиеся доменные поля.
// Версия и updated_at не учитываются: они меняются при каждой мутации
// и сигналом изменения не являются.
func changedPayload(before, after *models.Proposal) models.Payload {
	changed := models.Payload{}
	if before.Product != after.Product {
		changed["product"] = after.Product
	}
	if !before.MonthlyValue.Equal(after.MonthlyValue) {
		changed["monthly_value"] = after.MonthlyValue.StringFixed(2)
	}
	if before.Status != after.Status {
		changed["status"] = string(after.Status)
	}
	return changed
}
