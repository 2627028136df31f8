package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/identity"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req identity.Registration
	if !h.bind(c, &req) {
		return
	}
	// Only an existing admin may create another admin.
	byAdmin := h.callerIsAdmin(c)
	if req.Role == identity.RoleAdmin && !byAdmin {
		h.fail(c, apperr.Forbidden("only admins can register admins"))
		return
	}

	p, err := h.people.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	// Accounts created on someone else's behalf get no session.
	if byAdmin {
		c.JSON(http.StatusCreated, gin.H{"user": p})
		return
	}
	tok, err := h.issuer.Issue(p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": p, "token": tok.AccessToken, "expires_at": tok.ExpiresAt})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	p, err := h.people.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	tok, err := h.issuer.Issue(p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p, "token": tok.AccessToken, "expires_at": tok.ExpiresAt})
}

func (h *Handler) me(c *gin.Context) {
	p, err := h.people.Get(c.Request.Context(), claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p})
}

// callerIsAdmin checks an optional bearer token on an open route.
func (h *Handler) callerIsAdmin(c *gin.Context) bool {
	authz := c.GetHeader("Authorization")
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return false
	}
	cl, err := h.issuer.Parse(strings.TrimSpace(authz[len("bearer "):]))
	return err == nil && cl.IsAdmin()
}
