package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lokman32/leadprep/internal/reporting"
)

func (a *api) overdue(c *gin.Context) {
	rows, err := a.cfg.Reports.Overdue(c.Request.Context(), time.Now())
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", rows)
}

func (a *api) pendingDeliveries(c *gin.Context) {
	rows, err := a.cfg.Reports.PendingDeliveries(c.Request.Context())
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", rows)
}

func (a *api) awaitingConfirmation(c *gin.Context) {
	rows, err := a.cfg.Reports.AwaitingConfirmation(c.Request.Context())
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", rows)
}

func (a *api) logisticBoard(c *gin.Context) {
	rows, err := a.cfg.Reports.LogisticBoard(c.Request.Context())
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", rows)
}

// dateParam reads ?date=YYYY-MM-DD, defaulting to today in the facility zone.
func (a *api) dateParam(c *gin.Context) (time.Time, error) {
	loc := a.cfg.Reports.Location()
	if raw := c.Query("date"); raw != "" {
		return reporting.ParseDate(raw, loc)
	}
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
}

func (a *api) shiftSummary(c *gin.Context) {
	date, err := a.dateParam(c)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	sum, err := a.cfg.Reports.ShiftSummary(c.Request.Context(), date)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", sum)
}

func (a *api) shiftDetails(c *gin.Context) {
	date, err := a.dateParam(c)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	shift, err := reporting.ParseShift(c.Query("shift"))
	if err != nil {
		fail(c, a.log, err)
		return
	}
	rows, err := a.cfg.Reports.ShiftDetails(c.Request.Context(), date, shift)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", rows)
}

// dayLines lists every line when no date is given.
func (a *api) dayLines(c *gin.Context) {
	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		d, err := reporting.ParseDate(raw, a.cfg.Reports.Location())
		if err != nil {
			fail(c, a.log, err)
			return
		}
		date = &d
	}
	rows, err := a.cfg.Reports.DayLines(c.Request.Context(), date)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", rows)
}
