package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ddudev/storefront-gateway/internal/eligibility"
)

type EligibilityChecker interface {
	Check(ctx context.Context, cartID string) (eligibility.Result, error)
}

type EligibilityHandler struct {
	service EligibilityChecker
	timeout time.Duration
}

func NewEligibilityHandler(service EligibilityChecker, timeout time.Duration) *EligibilityHandler {
	return &EligibilityHandler{
		service: service,
		timeout: timeout,
	}
}

func (h *EligibilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID := r.URL.Query().Get("cart_id")
	if cartID == "" {
		respondError(w, http.StatusBadRequest, "cart_id query parameter is required", "")
		return
	}

	result, err := h.service.Check(ctx, cartID)
	if err != nil {
		if errors.Is(err, eligibility.ErrCartNotFound) {
			respondError(w, http.StatusNotFound, "cart not found", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to check free shipping eligibility", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}
