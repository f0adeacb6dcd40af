package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/settlement-engine/internal/common"
)

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{Code: 0, Message: "ok", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, apiResponse{Code: status, Message: message})
}

// failErr picks the status from the error kind.
func failErr(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		fail(c, status, "internal error")
		return
	}
	fail(c, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrRoundNotFound),
		errors.Is(err, common.ErrWagerNotFound),
		errors.Is(err, common.ErrBalanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidStateTransition),
		errors.Is(err, common.ErrSettlementInProgress),
		errors.Is(err, common.ErrResultAlreadyDeclared),
		errors.Is(err, common.ErrAlreadyCorrected),
		errors.Is(err, common.ErrStandaloneOnly):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidResult):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
