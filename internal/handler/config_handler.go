package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/pkg/response"
	"github.com/RGU-Computing/clood/internal/service"
)

type ConfigHandler struct {
	configs *service.ConfigService
}

func NewConfigHandler(configs *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{configs: configs}
}

func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.configs.Get(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cfg)
}

func (h *ConfigHandler) Update(c *gin.Context) {
	var cfg model.GlobalConfig
	if !bindJSON(c, &cfg) {
		return
	}
	if err := h.configs.Update(c.Request.Context(), &cfg); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, &cfg)
}

func (h *ConfigHandler) Rebuild(c *gin.Context) {
	cfg, err := h.configs.Rebuild(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cfg)
}
