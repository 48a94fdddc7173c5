package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lokman32/leadprep/internal/validation"
)

func (a *api) lineDetail(c *gin.Context) {
	d, err := a.cfg.Orders.GetLine(c.Request.Context(), c.Param("code"), c.Param("part"))
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", d)
}

// updateLineStatus only accepts a cancellation; other statuses are derived.
func (a *api) updateLineStatus(c *gin.Context) {
	var req validation.LineStatusRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	order, err := a.cfg.Orders.CancelLine(c.Request.Context(), c.Param("code"), c.Param("part"))
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "Line cancelled", order)
}

func (a *api) deleteOrder(c *gin.Context) {
	if err := a.cfg.Orders.DeleteOrder(c.Request.Context(), c.Param("code")); err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "Order deleted", nil)
}

func (a *api) deleteLine(c *gin.Context) {
	order, err := a.cfg.Orders.DeleteLine(c.Request.Context(), c.Param("code"), c.Param("part"))
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "Line deleted", order)
}

func (a *api) deleteDelivery(c *gin.Context) {
	order, err := a.cfg.Orders.DeleteDelivery(c.Request.Context(), c.Param("code"), c.Param("part"), c.Param("serial"))
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "Delivery deleted", order)
}
