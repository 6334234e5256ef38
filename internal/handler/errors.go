package handler

import (
	"backend/pkg/apperr"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto the standard envelope. Coded domain
// errors carry their code and mapped status; storage-layer failures are
// classified into STORAGE_UNAVAILABLE (503) here so read paths outside the
// retry wrapper get the same treatment; anything uncoded is a 500.
func respondError(c *gin.Context, err error) {
	err = apperr.ClassifyPg(err)
	status := apperr.HTTPStatus(err)
	if code := apperr.Code(err); code != "" {
		c.JSON(status, response.ErrorWithCode(status, code, err.Error()))
		return
	}
	c.JSON(status, response.Error(status, err.Error()))
}
