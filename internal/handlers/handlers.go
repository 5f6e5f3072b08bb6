package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"proposals/db"
	"proposals/internal/service"
	"proposals/models"
)

// Интерфейсы сервисов для подмены моками в тестах

type ProposalServiceInterface interface {
	Create(ctx context.Context, actor string, in service.CreateProposalInput) (*models.Proposal, error)
	Get(ctx context.Context, id int) (*models.Proposal, error)
	List(ctx context.Context, f db.ProposalFilter) ([]models.Proposal, error)
	AuditLog(ctx context.Context, proposalID int) ([]models.AuditRecord, error)
	UpdateContent(ctx context.Context, actor string, id int, in service.UpdateProposalInput) (*models.Proposal, error)
	Submit(ctx context.Context, actor string, id int) (*models.Proposal, error)
	Approve(ctx context.Context, actor string, id int) (*models.Proposal, error)
	Reject(ctx context.Context, actor string, id int) (*models.Proposal, error)
	Cancel(ctx context.Context, actor string, id int) (*models.Proposal, error)
	Delete(ctx context.Context, actor string, id int) error
}

type OrderServiceInterface interface {
	PlaceOrder(ctx context.Context, proposalID int, notes *string) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID int) (*models.Order, error)
	Get(ctx context.Context, id int) (*models.Order, error)
	List(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error)
}

type ClientServiceInterface interface {
	Create(ctx context.Context, c *models.Client) error
	Get(ctx context.Context, id int) (*models.Client, error)
	Exists(ctx context.Context, id int) (bool, error)
}

// Handler связывает HTTP-маршруты с сервисами
type Handler struct {
	Proposals ProposalServiceInterface
	Orders    OrderServiceInterface
	Clients   ClientServiceInterface

	validate *validator.Validate
}

func NewHandler(proposals ProposalServiceInterface, orders OrderServiceInterface, clients ClientServiceInterface) *Handler {
	return &Handler{
		Proposals: proposals,
		Orders:    orders,
		Clients:   clients,
		validate:  validator.New(),
	}
}

// HealthHandler отвечает "ok" для проверки сервера
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IdempotencyKeyHandler выдаёт свежий ключ для заголовка Idempotency-Key
func (h *Handler) IdempotencyKeyHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"idempotencyKey": uuid.NewString()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON читает тело запроса с лимитом размера (защита от DoS)
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError переводит типизированные ошибки сервисов в HTTP-статусы:
// NotFound → 404, нарушение бизнес-правила → 422, конфликт версий → 409
func writeServiceError(w http.ResponseWriter, err error) {
	var nfErr *service.NotFoundError
	if errors.As(err, &nfErr) {
		respondJSON(w, http.StatusNotFound, map[string]any{"error": nfErr.Error()})
		return
	}

	var bizErr *service.BusinessError
	if errors.As(err, &bizErr) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   bizErr.Message,
			"reason":  bizErr.Reason,
			"context": bizErr.Context,
		})
		return
	}

	var concErr *service.ConcurrencyError
	if errors.As(err, &concErr) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":   concErr.Message,
			"reason":  "stale_version",
			"context": concErr.Context,
		})
		return
	}

	respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
}

// pathID парсит числовой параметр пути chi
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}
