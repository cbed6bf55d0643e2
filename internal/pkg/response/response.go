package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

type Envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Code: 0, Message: "success", Data: data})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Envelope{Code: code, Message: message})
}

// Fail writes a domain error as {type, message, detail} under data.
func Fail(c *gin.Context, status int, code int, err *appErr.Error) {
	c.JSON(status, Envelope{Code: code, Message: err.Message, Data: err})
}
