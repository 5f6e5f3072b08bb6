package handlers

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"proposals/db"
	"proposals/internal/service"
	"proposals/models"
)

type createProposalRequest struct {
	ClientID     int             `json:"clientId" validate:"required,gt=0"`
	Product      string          `json:"product" validate:"required,max=100"`
	MonthlyValue decimal.Decimal `json:"monthlyValue"`
	Origin       string          `json:"origin" validate:"required"`
}

type updateProposalRequest struct {
	Version      int              `json:"version" validate:"required,gt=0"`
	Product      *string          `json:"product" validate:"omitempty,max=100"`
	MonthlyValue *decimal.Decimal `json:"monthlyValue"`
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 15, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// CreateProposalHandler обрабатывает POST /api/v1/proposals.
// Статус и версия из тела игнорируются: всегда draft, версия 1.
func (h *Handler) CreateProposalHandler(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.MonthlyValue.IsNegative() {
		badRequest(w, "monthlyValue must be non-negative")
		return
	}
	origin := models.ProposalOrigin(req.Origin)
	if !origin.Valid() {
		badRequest(w, "origin must be one of: app, site, api")
		return
	}

	exists, err := h.Clients.Exists(r.Context(), req.ClientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !exists {
		badRequest(w, "clientId references an unknown client")
		return
	}

	p, err := h.Proposals.Create(r.Context(), Actor(r), service.CreateProposalInput{
		ClientID:     req.ClientID,
		Product:      req.Product,
		MonthlyValue: req.MonthlyValue,
		Origin:       origin,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// GetProposalsHandler возвращает список с фильтрами status и clientId
func (h *Handler) GetProposalsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	filter := db.ProposalFilter{Limit: params.Limit, Offset: params.Offset}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = models.ProposalStatus(status)
	}
	if clientStr := r.URL.Query().Get("clientId"); clientStr != "" {
		if id, err := strconv.Atoi(clientStr); err == nil && id > 0 {
			filter.ClientID = id
		}
	}

	proposals, err := h.Proposals.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, proposals)
}

func (h *Handler) GetProposalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "proposalId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	p, err := h.Proposals.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdateProposalHandler обрабатывает PATCH /api/v1/proposals/{proposalId}.
// version в теле обязателен: это ожидаемая версия для оптимистичной блокировки.
func (h *Handler) UpdateProposalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "proposalId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req updateProposalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.MonthlyValue != nil && req.MonthlyValue.IsNegative() {
		badRequest(w, "monthlyValue must be non-negative")
		return
	}

	p, err := h.Proposals.UpdateContent(r.Context(), Actor(r), id, service.UpdateProposalInput{
		ExpectedVersion: req.Version,
		Product:         req.Product,
		MonthlyValue:    req.MonthlyValue,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) transitionHandler(op func(r *http.Request, id int) (*models.Proposal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "proposalId")
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		p, err := op(r, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

func (h *Handler) SubmitProposalHandler() http.HandlerFunc {
	return h.transitionHandler(func(r *http.Request, id int) (*models.Proposal, error) {
		return h.Proposals.Submit(r.Context(), Actor(r), id)
	})
}

func (h *Handler) ApproveProposalHandler() http.HandlerFunc {
	return h.transitionHandler(func(r *http.Request, id int) (*models.Proposal, error) {
		return h.Proposals.Approve(r.Context(), Actor(r), id)
	})
}

func (h *Handler) RejectProposalHandler() http.HandlerFunc {
	return h.transitionHandler(func(r *http.Request, id int) (*models.Proposal, error) {
		return h.Proposals.Reject(r.Context(), Actor(r), id)
	})
}

func (h *Handler) CancelProposalHandler() http.HandlerFunc {
	return h.transitionHandler(func(r *http.Request, id int) (*models.Proposal, error) {
		return h.Proposals.Cancel(r.Context(), Actor(r), id)
	})
}

// DeleteProposalHandler выполняет логическое удаление, строка и аудит сохраняются
func (h *Handler) DeleteProposalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "proposalId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.Proposals.Delete(r.Context(), Actor(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProposalAuditHandler возвращает журнал аудита предложения
func (h *Handler) GetProposalAuditHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "proposalId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	records, err := h.Proposals.AuditLog(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}
