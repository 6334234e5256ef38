package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	respond := func(err error) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, err)
		return w
	}

	t.Run("coded errors carry their status and code", func(t *testing.T) {
		w := respond(apperr.InsufficientPool(decimal.NewFromInt(50), decimal.NewFromInt(40)))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), apperr.CodeInsufficientPool)

		w = respond(apperr.Conflict("race"))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), apperr.CodeConcurrencyConflict)
	})

	t.Run("a database connection failure answers 503", func(t *testing.T) {
		w := respond(fmt.Errorf("failed to load pool: %w", &pgconn.PgError{Code: "08006"}))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), apperr.CodeStorageUnavailable)
	})

	t.Run("uncoded errors fall back to 500 without a code", func(t *testing.T) {
		w := respond(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "\"code\"")
	})
}
