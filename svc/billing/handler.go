package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfmetrics/billing/pkg/catalog"
	"github.com/shelfmetrics/billing/pkg/lifecycle"
	"github.com/shelfmetrics/billing/pkg/payment"
	"github.com/shelfmetrics/billing/pkg/store"
)

// UserIDResolver extracts the acting tenant from the request. The default
// reads the X-User-ID header set by the upstream auth proxy.
type UserIDResolver func(r *http.Request) string

func headerUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// Handler exposes the engine over HTTP.
type Handler struct {
	engine  *Engine
	resolve UserIDResolver
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithUserIDResolver overrides how the tenant is derived from a request.
func WithUserIDResolver(fn UserIDResolver) HandlerOption {
	return func(h *Handler) {
		if fn != nil {
			h.resolve = fn
		}
	}
}

// NewHandler creates an HTTP handler on top of the engine.
func NewHandler(engine *Engine, opts ...HandlerOption) *Handler {
	if engine == nil {
		panic("billing: engine is required")
	}
	h := &Handler{engine: engine, resolve: headerUserID}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle returns the mountable billing router.
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.NewHandler(engine).Handle())
func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/plans", h.listPlans)
	r.Post("/subscriptions", h.createSubscription)
	r.Get("/subscriptions/current", h.getSubscription)
	r.Patch("/subscriptions/plan", h.changePlan)
	r.Delete("/subscriptions/current", h.cancelSubscription)
	r.Post("/payment-methods", h.attachPaymentMethod)
	r.Get("/trial-status", h.trialStatus)
	r.Get("/usage", h.usageStats)
	r.Get("/features/{feature}/access", h.featureAccess)
	r.Post("/webhooks/payment", h.webhook)

	return r
}

type createSubscriptionRequest struct {
	PlanID   string            `json:"plan_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	userID := h.resolve(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing tenant identity")
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.engine.CreateSubscription(r.Context(), userID, req.PlanID, lifecycle.CreateOptions{Metadata: req.Metadata})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	userID := h.resolve(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing tenant identity")
		return
	}

	sub, err := h.engine.GetSubscription(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type changePlanRequest struct {
	PlanID        string `json:"plan_id"`
	PaymentMethod *struct {
		MethodID string `json:"method_id"`
		Email    string `json:"email,omitempty"`
	} `json:"payment_method,omitempty"`
}

func (h *Handler) changePlan(w http.ResponseWriter, r *http.Request) {
	userID := h.resolve(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing tenant identity")
		return
	}

	var req changePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var pm *lifecycle.PaymentMethod
	if req.PaymentMethod != nil {
		pm = &lifecycle.PaymentMethod{MethodID: req.PaymentMethod.MethodID, Email: req.PaymentMethod.Email}
	}

	sub, err := h.engine.UpdateSubscriptionPlan(r.Context(), userID, req.PlanID, pm)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID := h.resolve(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing tenant identity")
		return
	}

	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sub, err := h.engine.CancelSubscription(r.Context(), userID, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type attachPaymentMethodRequest struct {
	MethodID string `json:"method_id"`
	Email    string `json:"email,omitempty"`
}

func (h *Handler) attachPaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID := h.resolve(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing tenant identity")
		return
	}

	var req attachPaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.engine.AttachPaymentMethod(r.Context(), userID, lifecycle.PaymentMethod{MethodID: req.MethodID, Email: req.Email})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.GetAvailablePlans())
}

func (h *Handler) trialStatus(w http.ResponseWriter, r *http.Request) {
	userID := h.resolve(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing tenant identity")
		return
	}

	status, err := h.engine.CheckTrialAndPaymentStatus(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) usageStats(w http.ResponseWriter, r *http.Request) {
	userID := h.resolve(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing tenant identity")
		return
	}

	stats, err := h.engine.GetUsageStats(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) featureAccess(w http.ResponseWriter, r *http.Request) {
	userID := h.resolve(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing tenant identity")
		return
	}

	feature := catalog.Feature(chi.URLParam(r, "feature"))
	decision := h.engine.EvaluateFeatureAccess(r.Context(), userID, feature)
	writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.engine.HandleWebhookEvent(r.Context(), payload, r.Header.Get("Paddle-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrWebhookVerificationFailed) {
			writeError(w, http.StatusUnauthorized, "invalid webhook signature")
			return
		}
		// Surface transient failures so the provider retries delivery.
		writeError(w, http.StatusInternalServerError, "failed to process webhook event")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeDomainError maps domain sentinel errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrPaymentMethodRequired):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, store.ErrSubscriptionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrSubscriptionAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrPlanNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
