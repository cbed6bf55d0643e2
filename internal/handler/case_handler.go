package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/pkg/response"
	"github.com/RGU-Computing/clood/internal/service"
)

type CaseHandler struct {
	casebase *service.CasebaseService
}

func NewCaseHandler(casebase *service.CasebaseService) *CaseHandler {
	return &CaseHandler{casebase: casebase}
}

func (h *CaseHandler) BulkSave(c *gin.Context) {
	var cases []model.Case
	if !bindJSON(c, &cases) {
		return
	}
	res, err := h.casebase.BulkSave(c.Request.Context(), c.Param("id"), cases)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, res)
}

func (h *CaseHandler) List(c *gin.Context) {
	start, ok := queryInt(c, "start", 0)
	if !ok {
		return
	}
	size, ok := queryInt(c, "size", 0)
	if !ok {
		return
	}
	page, err := h.casebase.List(c.Request.Context(), c.Param("id"), start, size)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, page)
}

func (h *CaseHandler) DeleteAll(c *gin.Context) {
	if err := h.casebase.DeleteCasebase(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"projectId": c.Param("id")})
}

func (h *CaseHandler) Get(c *gin.Context) {
	doc, err := h.casebase.Get(c.Request.Context(), c.Param("id"), c.Param("cid"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *CaseHandler) Update(c *gin.Context) {
	var patch model.Case
	if !bindJSON(c, &patch) {
		return
	}
	doc, err := h.casebase.UpdateCase(c.Request.Context(), c.Param("id"), c.Param("cid"), patch)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *CaseHandler) Delete(c *gin.Context) {
	if err := h.casebase.DeleteCase(c.Request.Context(), c.Param("id"), c.Param("cid")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id__": c.Param("cid")})
}
