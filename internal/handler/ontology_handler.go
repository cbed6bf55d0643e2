package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/ontology"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/pkg/response"
	"github.com/RGU-Computing/clood/internal/service"
)

// OntologyHandler serves the project-level check/build endpoints and the raw
// grid endpoints other instances call through ontology.RemoteService.
type OntologyHandler struct {
	projects *service.ProjectService
	ontology *service.OntologyService
	grids    ontology.Service
}

func NewOntologyHandler(projects *service.ProjectService, ont *service.OntologyService, grids ontology.Service) *OntologyHandler {
	return &OntologyHandler{projects: projects, ontology: ont, grids: grids}
}

type checkRequest struct {
	ID string `json:"ontologyId"`
}

func (h *OntologyHandler) Check(c *gin.Context) {
	var req checkRequest
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.ontology.Check(c.Request.Context(), req.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, st)
}

type buildRequest struct {
	ProjectID string `json:"projectId"`
	Attribute string `json:"attribute"`
}

func (h *OntologyHandler) Build(c *gin.Context) {
	var req buildRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.projects.Get(c.Request.Context(), req.ProjectID)
	if err != nil {
		handleError(c, err)
		return
	}
	attr := p.Attribute(req.Attribute)
	if attr == nil {
		handleError(c, appErr.InvalidRequest("unknown attribute "+req.Attribute))
		return
	}
	count, err := h.ontology.Build(c.Request.Context(), p, attr)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ontology.PreloadResult{ID: p.OntologyGridID(attr), Count: count})
}

func (h *OntologyHandler) Preload(c *gin.Context) {
	var d model.OntologyDescriptor
	if !bindJSON(c, &d) {
		return
	}
	if d.ID == "" || len(d.Sources) == 0 {
		handleError(c, appErr.InvalidRequest("ontologyId and sources are required"))
		return
	}
	count, err := h.grids.Preload(c.Request.Context(), d)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ontology.PreloadResult{ID: d.ID, Count: count})
}

// Query builds a missing row only when the request carries sources.
func (h *OntologyHandler) Query(c *gin.Context) {
	var req ontology.QueryRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ID == "" || req.Key == "" {
		handleError(c, appErr.InvalidRequest("ontologyId and key are required"))
		return
	}
	var (
		row map[string]float64
		err error
	)
	if len(req.Sources) > 0 {
		row, err = h.grids.QueryOrBuild(c.Request.Context(), req.OntologyDescriptor, req.Key)
	} else {
		row, err = h.grids.Query(c.Request.Context(), req.ID, req.Key)
	}
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, model.GridRow{Key: req.Key, Map: row})
}

func (h *OntologyHandler) Status(c *gin.Context) {
	var req ontology.DeleteRequest
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.grids.Status(c.Request.Context(), req.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, st)
}

func (h *OntologyHandler) Delete(c *gin.Context) {
	var req ontology.DeleteRequest
	if !bindJSON(c, &req) {
		return
	}
	var err error
	switch {
	case req.Prefix != "":
		err = h.grids.DeleteByPrefix(c.Request.Context(), req.Prefix)
	case req.ID != "":
		err = h.grids.Delete(c.Request.Context(), req.ID)
	default:
		err = appErr.InvalidRequest("ontologyId or prefix is required")
	}
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, req)
}
