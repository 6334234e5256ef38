package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PoolHandler struct {
	poolService service.PoolService
}

func NewPoolHandler(poolService service.PoolService) *PoolHandler {
	return &PoolHandler{poolService: poolService}
}

func (h *PoolHandler) RegisterRoutes(router *gin.RouterGroup) {
	pools := router.Group("/api/pools")
	{
		pools.GET("/active", middleware.RequireRole("admin", "manager", "staff"), h.GetActivePool)
		pools.GET("", middleware.RequireRole("admin", "manager"), h.GetPools)
		pools.GET("/:id/transactions", middleware.RequireRole("admin", "manager"), h.GetPoolTransactions)
		pools.POST("/withdraw", middleware.RequireRole("admin", "manager"), h.Withdraw)
		pools.POST("/:id/reset", middleware.RequireRole("admin"), h.ResetPool)
	}
}

// GetActivePool returns the live pool snapshot with derived averages
// @Summary      Get active pool
// @Tags         pools
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.PoolResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/pools/active [get]
func (h *PoolHandler) GetActivePool(c *gin.Context) {
	pool, err := h.poolService.GetActivePool(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pool))
}

// GetPools lists current and archived pools
// @Summary      List pools
// @Tags         pools
// @Security     BearerAuth
// @Produce      json
// @Param        page   query  int  false  "Page number (default 1)"
// @Param        limit  query  int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/pools [get]
func (h *PoolHandler) GetPools(c *gin.Context) {
	params := pagination.Parse(c)

	pools, total, err := h.poolService.ListPools(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"pools": pools,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// GetPoolTransactions lists the fold/withdraw journal of a pool
// @Summary      List pool transactions
// @Tags         pools
// @Security     BearerAuth
// @Produce      json
// @Param        id     path   string  true   "Pool ID"
// @Param        page   query  int     false  "Page number (default 1)"
// @Param        limit  query  int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/pools/{id}/transactions [get]
func (h *PoolHandler) GetPoolTransactions(c *gin.Context) {
	params := pagination.Parse(c)

	txs, total, err := h.poolService.ListTransactions(c.Request.Context(), c.Param("id"), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"total":        total,
		"page":         params.Page,
		"limit":        params.Limit,
	}))
}

// Withdraw draws quantity from the active pool for downstream production
// @Summary      Withdraw from pool
// @Description  Removes quantity from the remaining balance; the averages of what stays behind are unchanged
// @Tags         pools
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.WithdrawRequest  true  "Withdraw Payload"
// @Success      200      {object}  response.Response{data=service.PoolResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/pools/withdraw [post]
func (h *PoolHandler) Withdraw(c *gin.Context) {
	var req service.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	pool, err := h.poolService.Withdraw(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pool))
}

// ResetPool archives the active pool and starts a fresh one
// @Summary      Reset pool
// @Description  Archives the pool wholesale and creates a zeroed replacement, returning a reconciliation summary
// @Tags         pools
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Pool ID"
// @Success      200  {object}  response.Response{data=service.ResetSummary}
// @Failure      409  {object}  response.Response
// @Router       /api/pools/{id}/reset [post]
func (h *PoolHandler) ResetPool(c *gin.Context) {
	userID := c.GetString("userID")

	summary, err := h.poolService.ResetPool(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
