package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

// ErrorBody is the error contract consumed by clients: a single human readable string.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON sends a success payload keyed by resource name, e.g. {"timetableEntry": {...}}.
func JSON(c *gin.Context, status int, key string, data interface{}) {
	noStore(c)
	c.JSON(status, gin.H{key: data})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, key string, data interface{}) {
	JSON(c, http.StatusCreated, key, data)
}

// Error converts err to its status code. Unexpected failures are attached to the gin
// context for the request logger and reported with a generic message.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	message := appErr.Message
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
		message = appErrors.ErrInternal.Message
	}
	noStore(c)
	c.JSON(appErr.Status, ErrorBody{Error: message})
}

// Abort writes the error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
	c.Writer.WriteHeaderNow()
}

// Attachment streams a rendered file.
func Attachment(c *gin.Context, filename, contentType string, body []byte) {
	noStore(c)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, body)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
