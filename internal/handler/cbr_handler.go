package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RGU-Computing/clood/internal/pkg/response"
	"github.com/RGU-Computing/clood/internal/retrieval"
	"github.com/RGU-Computing/clood/internal/reuse"
	"github.com/RGU-Computing/clood/internal/service"
)

// CBRHandler exposes the retrieve, reuse, revise, retain cycle.
type CBRHandler struct {
	cbr *service.CBRService
}

func NewCBRHandler(cbr *service.CBRService) *CBRHandler {
	return &CBRHandler{cbr: cbr}
}

func (h *CBRHandler) Retrieve(c *gin.Context) {
	var req retrieval.Request
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.cbr.Retrieve(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *CBRHandler) Explain(c *gin.Context) {
	var req retrieval.ExplainRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.cbr.Explain(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *CBRHandler) Reuse(c *gin.Context) {
	var req reuse.Request
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.cbr.Reuse(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *CBRHandler) Revise(c *gin.Context) {
	response.Success(c, h.cbr.Revise(c.Request.Context()))
}

func (h *CBRHandler) Retain(c *gin.Context) {
	var req service.RetainRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.cbr.Retain(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, res)
}
