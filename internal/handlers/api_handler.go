package handlers

import (
	"net/http"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/services"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type APIHandler struct {
	userService    services.UserService
	orderService   services.OrderService
	libraryService services.LibraryService
	policy         *access.Policy
}

func NewAPIHandler(
	userService services.UserService,
	orderService services.OrderService,
	libraryService services.LibraryService,
	policy *access.Policy,
) *APIHandler {
	return &APIHandler{
		userService:    userService,
		orderService:   orderService,
		libraryService: libraryService,
		policy:         policy,
	}
}

// Session endpoints
func (h *APIHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("body", "invalid request format"))
		return
	}

	session, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *APIHandler) Logout(c *gin.Context) {
	if err := h.userService.Logout(c.Request.Context(), c.GetString(contextTokenKey)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) Me(c *gin.Context) {
	who := identity(c)
	c.JSON(http.StatusOK, gin.H{
		"id":    who.UserID,
		"email": who.Email,
		"name":  who.Name,
		"role":  who.Role,
	})
}

// Capabilities lists what the caller's role may do so the UI can hide
// controls. The same policy is enforced server side.
func (h *APIHandler) Capabilities(c *gin.Context) {
	who := identity(c)
	c.JSON(http.StatusOK, gin.H{
		"role":         who.Role,
		"capabilities": h.policy.Capabilities(who.Role),
	})
}

// Model library
func (h *APIHandler) SearchProps(c *gin.Context) {
	props, err := h.libraryService.Search(c.Request.Context(), identity(c), c.Query("q"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}

func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil || id <= 0 {
		AbortWithError(c, invalidRequestError(name, "invalid id"))
		return 0, false
	}
	return id, true
}
