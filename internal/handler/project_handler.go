package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RGU-Computing/clood/internal/pkg/response"
	"github.com/RGU-Computing/clood/internal/service"
)

type ProjectHandler struct {
	projects *service.ProjectService
	options  *service.OptionService
}

func NewProjectHandler(projects *service.ProjectService, options *service.OptionService) *ProjectHandler {
	return &ProjectHandler{projects: projects, options: options}
}

func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, p)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectInput
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.projects.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, p)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.UpdateProjectInput
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.projects.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, p)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id__": c.Param("id")})
}

func (h *ProjectHandler) CreateIndex(c *gin.Context) {
	created, err := h.projects.CreateIndex(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"created": created})
}

type refreshOptionsRequest struct {
	Attributes []string `json:"attributes"`
}

// RefreshOptions accepts an optional body naming the attributes to refresh.
func (h *ProjectHandler) RefreshOptions(c *gin.Context) {
	var req refreshOptionsRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.options.RefreshByID(c.Request.Context(), c.Param("id"), req.Attributes...)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, p)
}
