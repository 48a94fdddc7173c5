package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lokman32/leadprep/internal/auth"
	"github.com/Lokman32/leadprep/internal/validation"
)

func (a *api) login(c *gin.Context) {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	sess, err := a.cfg.Auth.Login(c.Request.Context(), req.Matricule)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	a.setSessionCookie(c, sess.Token, int(time.Until(sess.ExpiresAt).Seconds()))
	ok(c, http.StatusOK, "Login successful", sess)
}

func (a *api) logout(c *gin.Context) {
	a.setSessionCookie(c, "", -1)
	ok(c, http.StatusOK, "Logged out", nil)
}

func (a *api) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, value, maxAge, "/", "", a.cfg.SecureCookie, true)
}
