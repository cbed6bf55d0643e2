package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RGU-Computing/clood/internal/pkg/response"
	"github.com/RGU-Computing/clood/internal/service"
)

type AuthHandler struct {
	auth   *service.AuthService
	tokens *service.TokenService
}

func NewAuthHandler(auth *service.AuthService, tokens *service.TokenService) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token})
}

func (h *AuthHandler) ListTokens(c *gin.Context) {
	tokens, err := h.tokens.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, tokens)
}

func (h *AuthHandler) CreateToken(c *gin.Context) {
	var req service.CreateTokenInput
	if !bindJSON(c, &req) {
		return
	}
	token, err := h.tokens.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, token)
}

func (h *AuthHandler) DeleteToken(c *gin.Context) {
	if err := h.tokens.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id__": c.Param("id")})
}
