package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	batchService service.BatchService
}

func NewBatchHandler(batchService service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	batches := router.Group("/api/batches")
	{
		batches.POST("", middleware.RequireRole("admin", "manager"), h.CreateBatch)
		batches.GET("", middleware.RequireRole("admin", "manager", "staff"), h.GetBatches)
		batches.GET("/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetBatch)
	}
}

// CreateBatch consumes approved collections into a production batch
// @Summary      Create production batch
// @Description  Atomically folds the selected collections into the active pool, creates the batch, and marks the collections consumed
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateBatchRequest  true  "Create Batch Payload"
// @Success      201      {object}  response.Response{data=service.BatchResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/batches [post]
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	batch, err := h.batchService.CreateBatch(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, batch))
}

// GetBatches lists production batches
// @Summary      List production batches
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        page   query  int  false  "Page number (default 1)"
// @Param        limit  query  int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/batches [get]
func (h *BatchHandler) GetBatches(c *gin.Context) {
	params := pagination.Parse(c)

	batches, total, err := h.batchService.ListBatches(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"batches": batches,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}

// GetBatch retrieves a single batch with its input collections
// @Summary      Get production batch
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=service.BatchResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	batch, err := h.batchService.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, batch))
}
