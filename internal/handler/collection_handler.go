package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CollectionHandler struct {
	collectionService service.CollectionService
}

func NewCollectionHandler(collectionService service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collectionService: collectionService}
}

func (h *CollectionHandler) RegisterRoutes(router *gin.RouterGroup) {
	collections := router.Group("/api/collections")
	{
		collections.POST("", middleware.RequireRole("admin", "manager", "staff"), h.CreateCollection)
		collections.GET("", middleware.RequireRole("admin", "manager", "staff"), h.GetCollections)
		collections.GET("/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetCollection)
		collections.PATCH("/:id/qc", middleware.RequireRole("admin", "manager"), h.AdjustQC)
	}
}

// CreateCollection records a milk intake event from a supplier
// @Summary      Record milk collection
// @Description  Creates a new intake entry; quantity and quality are immutable afterwards
// @Tags         collections
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateCollectionRequest  true  "Collection Payload"
// @Success      201      {object}  response.Response{data=model.MilkCollection}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/collections [post]
func (h *CollectionHandler) CreateCollection(c *gin.Context) {
	var req service.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	collection, err := h.collectionService.CreateCollection(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, collection))
}

// GetCollections lists intake entries with status filters
// @Summary      List milk collections
// @Tags         collections
// @Security     BearerAuth
// @Produce      json
// @Param        page                query  int     false  "Page number (default 1)"
// @Param        limit               query  int     false  "Number of items per page (default 20)"
// @Param        qc_status           query  string  false  "Filter by QC status"
// @Param        consumption_status  query  string  false  "Filter by consumption status"
// @Param        supplier_id         query  string  false  "Filter by supplier"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/collections [get]
func (h *CollectionHandler) GetCollections(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.CollectionFilterRequest{
		QCStatus:          c.Query("qc_status"),
		ConsumptionStatus: c.Query("consumption_status"),
		SupplierID:        c.Query("supplier_id"),
		Page:              params.Page,
		Limit:             params.Limit,
	}

	collections, total, err := h.collectionService.ListCollections(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"collections": collections,
		"total":       total,
		"page":        params.Page,
		"limit":       params.Limit,
	}))
}

// GetCollection retrieves a single intake entry
// @Summary      Get milk collection
// @Tags         collections
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Collection ID"
// @Success      200  {object}  response.Response{data=model.MilkCollection}
// @Failure      404  {object}  response.Response
// @Router       /api/collections/{id} [get]
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	collection, err := h.collectionService.GetCollection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, collection))
}

// AdjustQC performs the one-shot QC review transition
// @Summary      Review milk collection
// @Description  Transitions qc_status PENDING -> APPROVED or REJECTED, exactly once
// @Tags         collections
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Collection ID"
// @Param        payload  body      service.AdjustQCRequest  true  "Review Payload"
// @Success      200      {object}  response.Response{data=model.MilkCollection}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/collections/{id}/qc [patch]
func (h *CollectionHandler) AdjustQC(c *gin.Context) {
	var req service.AdjustQCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	collection, err := h.collectionService.AdjustQCStatus(c.Request.Context(), userID, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, collection))
}
