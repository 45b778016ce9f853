package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appsub "github.com/subtrack/backend/internal/application/subscription"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/interfaces/http/middleware"
)

// SubscriptionUseCase is the part of the subscription service the handler needs
type SubscriptionUseCase interface {
	Create(ctx context.Context, cmd appsub.CreateCommand) (*appsub.SubscriptionDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, cmd appsub.UpdateCommand) (*appsub.SubscriptionDTO, error)
	Cancel(ctx context.Context, userID, id uuid.UUID) (*appsub.SubscriptionDTO, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*appsub.SubscriptionDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]appsub.SubscriptionDTO, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]appsub.SubscriptionDTO, error)
	MonthlyCost(ctx context.Context, userID uuid.UUID) (*appsub.MonthlyCostDTO, error)
}

var _ SubscriptionUseCase = (*appsub.Service)(nil)

// SubscriptionRequest is the body of create and update
type SubscriptionRequest struct {
	Name            string `json:"name" binding:"required,max=200"`
	Price           string `json:"price" binding:"required,numeric"`
	Currency        string `json:"currency" binding:"required,iso4217"`
	BillingCycle    string `json:"billingCycle" binding:"required,billing_cycle"`
	NextPaymentDate string `json:"nextPaymentDate" binding:"required,date"`
	AutoRenewal     bool   `json:"autoRenewal"`
}

// SubscriptionHandler serves the /subscriptions resource
type SubscriptionHandler struct {
	BaseHandler
	service SubscriptionUseCase
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(service SubscriptionUseCase) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// Create registers a subscription for the caller.
// POST /subscriptions
func (h *SubscriptionHandler) Create(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req SubscriptionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sub, err := h.service.Create(c.Request.Context(), appsub.CreateCommand{
		UserID:          userID,
		Name:            req.Name,
		Price:           req.Price,
		Currency:        req.Currency,
		BillingCycle:    req.BillingCycle,
		NextPaymentDate: req.NextPaymentDate,
		AutoRenewal:     req.AutoRenewal,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sub)
}

// List returns all of the caller's subscriptions.
// GET /subscriptions
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	subs, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, subs)
}

// ListActive returns the caller's active subscriptions.
// GET /subscriptions/active
func (h *SubscriptionHandler) ListActive(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	subs, err := h.service.ListActive(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, subs)
}

// Get returns one subscription.
// GET /subscriptions/:id
func (h *SubscriptionHandler) Get(c *gin.Context) {
	userID, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	sub, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}

// Update replaces the editable fields of a subscription.
// PUT /subscriptions/:id
func (h *SubscriptionHandler) Update(c *gin.Context) {
	userID, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}
	var req SubscriptionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sub, err := h.service.Update(c.Request.Context(), userID, id, appsub.UpdateCommand{
		Name:            req.Name,
		Price:           req.Price,
		Currency:        req.Currency,
		BillingCycle:    req.BillingCycle,
		NextPaymentDate: req.NextPaymentDate,
		AutoRenewal:     req.AutoRenewal,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}

// Cancel cancels a subscription. The record is kept.
// DELETE /subscriptions/:id
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	if _, err := h.service.Cancel(c.Request.Context(), userID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// MonthlyCost returns the caller's monthly spend in the base currency.
// GET /subscriptions/cost/monthly
func (h *SubscriptionHandler) MonthlyCost(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	cost, err := h.service.MonthlyCost(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cost)
}

func (h *SubscriptionHandler) ownerAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.HandleError(c, shared.NewDomainError(shared.CodeInvalidInput, "invalid subscription id"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}
