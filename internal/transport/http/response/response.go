package response

import "github.com/gin-gonic/gin"

const (
	CodeBadRequest         = 40000
	CodeUnauthorized       = 40100
	CodeNotFound           = 40400
	CodeTooLarge           = 41300
	CodeRateLimited        = 42900
	CodeInternalServer     = 50000
	CodeServiceUnavailable = 50300
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

// OK writes a flat JSON success body.
func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func Error(c *gin.Context, httpStatus, code int, detail string) {
	c.JSON(httpStatus, ErrorBody{
		Code:   code,
		Detail: detail,
	})
}

// Abort writes the error body and stops the handler chain.
func Abort(c *gin.Context, httpStatus, code int, detail string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{
		Code:   code,
		Detail: detail,
	})
}
