package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/attendance"
	"hostelattendance/internal/badge"
	"hostelattendance/internal/report"
)

const defaultPageSize = 500

type scanRequest struct {
	StudentID string `json:"student_id"`
	// studentId is what printed badges from the first release encode.
	LegacyStudentID string `json:"studentId"`
}

func transitionBody(tr attendance.Transition) gin.H {
	return gin.H{
		"status":  tr.Outcome,
		"message": tr.Outcome.Message(),
		"record":  tr.Record,
		"user":    tr.Person,
	}
}

func (h *Handler) mark(c *gin.Context) {
	tr, err := h.attendance.Mark(c.Request.Context(), claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, transitionBody(tr))
}

func (h *Handler) scan(c *gin.Context) {
	var req scanRequest
	if !h.bind(c, &req) {
		return
	}
	id := strings.TrimSpace(req.StudentID)
	if id == "" {
		id = strings.TrimSpace(req.LegacyStudentID)
	}
	if id == "" {
		h.fail(c, apperr.Invalid("Field 'student_id' is required"))
		return
	}
	tr, err := h.attendance.Scan(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, transitionBody(tr))
}

func (h *Handler) myHistory(c *gin.Context) {
	records, err := h.attendance.History(c.Request.Context(), claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report.History(records))
}

func (h *Handler) qr(c *gin.Context) {
	cl := claims(c)
	if cl.BadgeID == "" {
		h.fail(c, apperr.Invalid("only students have a QR badge"))
		return
	}
	size, err := queryInt(c, "size", badge.DefaultSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	if size > 1024 {
		size = 1024
	}
	png, err := badge.PNG(cl.BadgeID, size)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// filter reads the list/export query parameters.
func (h *Handler) filter(c *gin.Context) (attendance.Filter, error) {
	f := attendance.Filter{
		PersonID: c.Query("userId"),
		Badge:    firstNonEmpty(c.Query("badge"), c.Query("studentId")),
		Name:     c.Query("name"),
		Room:     firstNonEmpty(c.Query("room"), c.Query("roomNumber")),
	}
	if d := c.Query("date"); d != "" {
		day, err := attendance.ParseDay(d, h.attendance.Location())
		if err != nil {
			return f, apperr.Invalid("query parameter 'date' must be YYYY-MM-DD")
		}
		f.Day = &day
	}
	var err error
	if f.Limit, err = queryInt(c, "limit", defaultPageSize); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(c, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) listAll(c *gin.Context) {
	f, err := h.filter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.attendance.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []attendance.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) userAttendance(c *gin.Context) {
	records, err := h.attendance.History(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) stats(c *gin.Context) {
	s, err := report.DayStats(c.Request.Context(), h.attendance, h.attendance.Today())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) export(c *gin.Context) {
	format, err := report.ParseFormat(c.Param("format"))
	if err != nil {
		h.fail(c, err)
		return
	}
	f, err := h.filter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if c.Query("limit") == "" {
		f.Limit = 0
	}
	entries, err := h.attendance.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, report.Rows(entries, h.attendance.Location())); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
