package handlers

import (
	"net/http"

	"proposals/models"
)

type createClientRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(w, err.Error())
		return
	}

	c := &models.Client{Name: req.Name, Email: req.Email}
	if err := h.Clients.Create(r.Context(), c); err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "clientId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	c, err := h.Clients.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
