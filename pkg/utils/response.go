package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse es el cuerpo de error común a todas las rutas. Reason solo se
// rellena en los rechazos de negocio.
type ErrorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type errorEnvelope struct {
	Error ErrorResponse `json:"error"`
}

type dataEnvelope struct {
	Data interface{} `json:"data"`
}

// SendSuccess responde con el payload envuelto en "data".
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, dataEnvelope{Data: data})
}

// SendError responde con el error envuelto en "error".
func SendError(c *gin.Context, statusCode int, body ErrorResponse) {
	c.JSON(statusCode, errorEnvelope{Error: body})
}

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, ErrorResponse{Message: message})
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, ErrorResponse{Message: message})
}

func SendConflict(c *gin.Context, message string) {
	SendError(c, http.StatusConflict, ErrorResponse{Message: message})
}

// SendUnprocessable se usa para rechazos de negocio; reason es el motivo de la política.
func SendUnprocessable(c *gin.Context, message, reason string) {
	SendError(c, http.StatusUnprocessableEntity, ErrorResponse{Message: message, Reason: reason})
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, ErrorResponse{Message: message})
}
