package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lokman32/leadprep/internal/catalog"
	"github.com/Lokman32/leadprep/internal/validation"
)

func (a *api) listParts(c *gin.Context) {
	parts, err := a.cfg.Catalog.List(c.Request.Context())
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", parts)
}

func (a *api) partExists(c *gin.Context) {
	exists, err := a.cfg.Catalog.Exists(c.Request.Context(), c.Query("value"))
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"exists": exists})
}

func (a *api) searchParts(c *gin.Context) {
	var req validation.SearchRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	parts, err := a.cfg.Catalog.Search(c.Request.Context(), req.Query)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "", parts)
}

func (a *api) createPart(c *gin.Context) {
	var req validation.CreatePartRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	part, err := a.cfg.Catalog.Create(c.Request.Context(), catalog.Part{
		Identifier:    req.Identifier,
		AltIdentifier: req.AltIdentifier,
		Class:         catalog.Class(req.Class),
		Rack:          req.Rack,
		Packaging:     req.Packaging,
		Unit:          req.Unit,
		Type:          req.Type,
		Description:   req.Description,
		SortOrder:     req.SortOrder,
	})
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusCreated, "Part created", part)
}

func (a *api) updatePart(c *gin.Context) {
	var req validation.UpdatePartRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	patch := catalog.Patch{
		AltIdentifier: req.AltIdentifier,
		Rack:          req.Rack,
		Packaging:     req.Packaging,
		Unit:          req.Unit,
		Type:          req.Type,
		Description:   req.Description,
		SortOrder:     req.SortOrder,
	}
	if req.Class != nil {
		class := catalog.Class(*req.Class)
		patch.Class = &class
	}
	part, err := a.cfg.Catalog.Update(c.Request.Context(), c.Param("identifier"), patch)
	if err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "Part updated", part)
}

func (a *api) deletePart(c *gin.Context) {
	if err := a.cfg.Catalog.Delete(c.Request.Context(), c.Param("identifier")); err != nil {
		fail(c, a.log, err)
		return
	}
	ok(c, http.StatusOK, "Part deleted", nil)
}
