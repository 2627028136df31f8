package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostelattendance/internal/audit"
	"hostelattendance/internal/identity"
)

func (h *Handler) listUsers(c *gin.Context) {
	people, err := h.people.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if people == nil {
		people = []identity.Person{}
	}
	c.JSON(http.StatusOK, people)
}

func (h *Handler) getUser(c *gin.Context) {
	p, err := h.people.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) updateUser(c *gin.Context) {
	var ch identity.Changes
	if !h.bind(c, &ch) {
		return
	}
	p, err := h.people.Update(c.Request.Context(), c.Param("id"), ch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": p})
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.people.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (h *Handler) auditTrail(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusOK, []audit.Entry{})
		return
	}
	limit, err := queryInt(c, "limit", audit.DefaultLimit)
	if err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}
