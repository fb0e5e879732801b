package handlers

import (
	"net/http"

	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/Bright-River-CGI/lifestyle-app/internal/services"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// Request bodies are explicit allow-lists: fields not named here are
// ignored and never reach the stored document.
type productRequest struct {
	Name        string             `json:"name"`
	Code        string             `json:"code"`
	Type        models.ProductType `json:"type"`
	Description string             `json:"description"`
	Thumbnail   string             `json:"thumbnail"`
}

func (r productRequest) input() services.ProductInput {
	return services.ProductInput{
		Name:        r.Name,
		Code:        r.Code,
		Type:        r.Type,
		Description: r.Description,
		Thumbnail:   r.Thumbnail,
	}
}

type orderFileRequest struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (r orderFileRequest) input() services.OrderFileInput {
	return services.OrderFileInput{Name: r.Name, Size: r.Size, Type: r.Type, URL: r.URL}
}

type productFileRequest struct {
	Name string                 `json:"name"`
	Type models.ProductFileType `json:"type"`
	URL  string                 `json:"url"`
}

type createOrderRequest struct {
	Title    string             `json:"title"`
	Brief    string             `json:"brief"`
	Products []productRequest   `json:"products"`
	Files    []orderFileRequest `json:"files"`
	PropIDs  []snowflake.ID     `json:"selectedProps"`
}

type updateOrderRequest struct {
	Title           *string             `json:"title"`
	Brief           *string             `json:"brief"`
	Status          *models.OrderStatus `json:"status"`
	Products        *[]models.Product   `json:"products"`
	Files           *[]models.OrderFile `json:"files"`
	ExpectedVersion *int64              `json:"expectedVersion"`
}

type statusRequest struct {
	Status models.ProductStatus `json:"status"`
}

type commentRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.List(c.Request.Context(), identity(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *APIHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}

	draft := services.OrderDraft{Title: req.Title, Brief: req.Brief, PropIDs: req.PropIDs}
	for _, p := range req.Products {
		draft.Products = append(draft.Products, p.input())
	}
	for _, f := range req.Files {
		draft.Files = append(draft.Files, f.input())
	}

	order, err := h.orderService.Create(c.Request.Context(), identity(c), draft)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *APIHandler) OrderStats(c *gin.Context) {
	stats, err := h.orderService.Stats(c.Request.Context(), identity(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *APIHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.Get(c.Request.Context(), identity(c), id)
	respond(c, order, err)
}

func (h *APIHandler) UpdateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}

	order, err := h.orderService.Update(c.Request.Context(), identity(c), id, services.OrderPatch{
		Title:           req.Title,
		Brief:           req.Brief,
		Status:          req.Status,
		Products:        req.Products,
		Files:           req.Files,
		ExpectedVersion: req.ExpectedVersion,
	})
	respond(c, order, err)
}

func (h *APIHandler) DeleteOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.orderService.Delete(c.Request.Context(), identity(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Products
func (h *APIHandler) AddProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}
	order, err := h.orderService.AddProduct(c.Request.Context(), identity(c), id, req.input())
	respondCreated(c, order, err)
}

func (h *APIHandler) ChangeProductStatus(c *gin.Context) {
	id, productID, ok := orderAndProduct(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}
	order, err := h.orderService.ChangeProductStatus(c.Request.Context(), identity(c), id, productID, req.Status)
	respond(c, order, err)
}

func (h *APIHandler) DeleteProduct(c *gin.Context) {
	id, productID, ok := orderAndProduct(c)
	if !ok {
		return
	}
	order, err := h.orderService.DeleteProduct(c.Request.Context(), identity(c), id, productID)
	respond(c, order, err)
}

// Order files
func (h *APIHandler) UploadOrderFile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req orderFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}
	order, err := h.orderService.UploadOrderFile(c.Request.Context(), identity(c), id, req.input())
	respondCreated(c, order, err)
}

func (h *APIHandler) DeleteOrderFile(c *gin.Context) {
	id, fileID, ok := orderAndFile(c)
	if !ok {
		return
	}
	order, err := h.orderService.DeleteOrderFile(c.Request.Context(), identity(c), id, fileID)
	respond(c, order, err)
}

func (h *APIHandler) ApproveOrderFile(c *gin.Context) {
	id, fileID, ok := orderAndFile(c)
	if !ok {
		return
	}
	order, err := h.orderService.ApproveOrderFile(c.Request.Context(), identity(c), id, fileID)
	respond(c, order, err)
}

func (h *APIHandler) RejectOrderFile(c *gin.Context) {
	id, fileID, ok := orderAndFile(c)
	if !ok {
		return
	}
	order, err := h.orderService.RejectOrderFile(c.Request.Context(), identity(c), id, fileID)
	respond(c, order, err)
}

func (h *APIHandler) CommentOnOrderFile(c *gin.Context) {
	id, fileID, ok := orderAndFile(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}
	order, err := h.orderService.CommentOnOrderFile(c.Request.Context(), identity(c), id, fileID, req.Text)
	respondCreated(c, order, err)
}

// Product files
func (h *APIHandler) UploadProductFile(c *gin.Context) {
	id, productID, ok := orderAndProduct(c)
	if !ok {
		return
	}
	var req productFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}
	order, err := h.orderService.UploadProductFile(c.Request.Context(), identity(c), id, productID, services.ProductFileInput{
		Name: req.Name,
		Type: req.Type,
		URL:  req.URL,
	})
	respondCreated(c, order, err)
}

func (h *APIHandler) DeleteProductFile(c *gin.Context) {
	id, productID, fileID, ok := orderProductFile(c)
	if !ok {
		return
	}
	order, err := h.orderService.DeleteProductFile(c.Request.Context(), identity(c), id, productID, fileID)
	respond(c, order, err)
}

func (h *APIHandler) ApproveProductFile(c *gin.Context) {
	id, productID, fileID, ok := orderProductFile(c)
	if !ok {
		return
	}
	order, err := h.orderService.ApproveProductFile(c.Request.Context(), identity(c), id, productID, fileID)
	respond(c, order, err)
}

func (h *APIHandler) RejectProductFile(c *gin.Context) {
	id, productID, fileID, ok := orderProductFile(c)
	if !ok {
		return
	}
	order, err := h.orderService.RejectProductFile(c.Request.Context(), identity(c), id, productID, fileID)
	respond(c, order, err)
}

func (h *APIHandler) CommentOnProductFile(c *gin.Context) {
	id, productID, fileID, ok := orderProductFile(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}
	order, err := h.orderService.CommentOnProductFile(c.Request.Context(), identity(c), id, productID, fileID, req.Text)
	respondCreated(c, order, err)
}

func respond(c *gin.Context, order *models.Order, err error) {
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func respondCreated(c *gin.Context, order *models.Order, err error) {
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func orderAndProduct(c *gin.Context) (snowflake.ID, snowflake.ID, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return 0, 0, false
	}
	productID, ok := pathID(c, "productId")
	return id, productID, ok
}

func orderAndFile(c *gin.Context) (snowflake.ID, snowflake.ID, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return 0, 0, false
	}
	fileID, ok := pathID(c, "fileId")
	return id, fileID, ok
}

func orderProductFile(c *gin.Context) (snowflake.ID, snowflake.ID, snowflake.ID, bool) {
	id, productID, ok := orderAndProduct(c)
	if !ok {
		return 0, 0, 0, false
	}
	fileID, ok := pathID(c, "fileId")
	return id, productID, fileID, ok
}
