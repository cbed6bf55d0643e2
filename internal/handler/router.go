package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RGU-Computing/clood/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Projects  *ProjectHandler
	Cases     *CaseHandler
	CBR       *CBRHandler
	Config    *ConfigHandler
	Ontology  *OntologyHandler
	Verifier  middleware.TokenVerifier
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth", middleware.RateLimit(deps.RateLimit), deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.TokenAuth(deps.Verifier))

	authGroup.GET("/token", deps.Auth.ListTokens)
	authGroup.POST("/token", deps.Auth.CreateToken)
	authGroup.DELETE("/token/:id", deps.Auth.DeleteToken)

	authGroup.GET("/project", deps.Projects.List)
	authGroup.POST("/project", deps.Projects.Create)
	authGroup.GET("/project/:id", deps.Projects.Get)
	authGroup.PUT("/project/:id", deps.Projects.Update)
	authGroup.DELETE("/project/:id", deps.Projects.Delete)
	authGroup.POST("/project/:id/index", deps.Projects.CreateIndex)
	authGroup.POST("/project/:id/refresh-options", deps.Projects.RefreshOptions)

	authGroup.POST("/case/:id/list", deps.Cases.BulkSave)
	authGroup.GET("/case/:id/list", deps.Cases.List)
	authGroup.DELETE("/case/:id/list", deps.Cases.DeleteAll)
	authGroup.GET("/case/:id/list/:cid", deps.Cases.Get)
	authGroup.PUT("/case/:id/list/:cid", deps.Cases.Update)
	authGroup.DELETE("/case/:id/list/:cid", deps.Cases.Delete)

	authGroup.POST("/retrieve", deps.CBR.Retrieve)
	authGroup.POST("/reuse", deps.CBR.Reuse)
	authGroup.POST("/revise", deps.CBR.Revise)
	authGroup.POST("/retain", deps.CBR.Retain)
	authGroup.POST("/explain", deps.CBR.Explain)

	authGroup.GET("/config", deps.Config.Get)
	authGroup.PUT("/config", deps.Config.Update)
	authGroup.POST("/config/rebuild", deps.Config.Rebuild)

	authGroup.POST("/ontology/check", deps.Ontology.Check)
	authGroup.POST("/ontology/build", deps.Ontology.Build)
	authGroup.POST("/ontology/preload", deps.Ontology.Preload)
	authGroup.POST("/ontology/query", deps.Ontology.Query)
	authGroup.POST("/ontology/status", deps.Ontology.Status)
	authGroup.POST("/ontology/delete", deps.Ontology.Delete)
}
