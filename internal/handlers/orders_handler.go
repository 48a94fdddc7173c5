package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lokman32/leadprep/internal/auth"
	"github.com/Lokman32/leadprep/internal/orders"
	"github.com/Lokman32/leadprep/internal/validation"
)

func (a *api) createOrder(c *gin.Context) {
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}

	// Only admins may file an order on behalf of someone else.
	var requester string
	if claims := auth.ClaimsFrom(c); claims != nil {
		requester = claims.Matricule
		if req.RequesterID != "" && claims.Role == auth.RoleAdmin {
			requester = req.RequesterID
		}
	}
	items := make([]orders.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.Item{Part: it.Part, Quantity: it.Quantity})
	}

	order, err := a.cfg.Orders.CreateOrder(c.Request.Context(), requester, items)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/admin/orders/%s", order.SerialCode))
	ok(c, http.StatusCreated, "Order created", order)
}

func (a *api) recordDelivery(c *gin.Context) {
	var req validation.DeliveryRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	res, err := a.cfg.Orders.RecordDelivery(c.Request.Context(), req.Part, req.Serial)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	msg := fmt.Sprintf("Delivery recorded (%d/%d)", res.DeliveredCount, res.Quantity)
	if res.OrderFullyDelivered {
		msg = "Delivery recorded, order fully delivered"
	}
	ok(c, http.StatusOK, msg, res)
}

func (a *api) confirmDelivery(c *gin.Context) {
	var req validation.DeliveryRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	res, err := a.cfg.Orders.ConfirmDelivery(c.Request.Context(), req.Part, req.Serial)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "Delivery confirmed", res)
}

func (a *api) updateFeedback(c *gin.Context) {
	var req validation.FeedbackRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	order, err := a.cfg.Orders.UpdateLineFeedback(c.Request.Context(), c.Param("code"), c.Param("part"), req.Description)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "Description updated", order)
}
