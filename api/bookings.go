package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/service/booking"
	"github.com/Domenick1991/coursebot/internal/service/reporting"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const recentBookingsLimit = 20

type BookingHandler struct {
	bookings  booking.BookingUseCase
	reporting reporting.ReportingUseCase
	log       logrus.FieldLogger
}

func NewBookingHandler(bookings booking.BookingUseCase, reporting reporting.ReportingUseCase, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{bookings: bookings, reporting: reporting, log: log}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/recent", h.recent)
	router.GET("/summary", h.summary)
	router.GET("/:id", h.get)
	router.DELETE("/test", h.deleteTest)
}

func (h *BookingHandler) list(c *gin.Context) {
	var filter domain.BookingFilter
	if v := c.Query("status"); v != "" {
		status, err := domain.ParseBookingStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Status = &status
	}
	if v := c.Query("course_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course_id"})
			return
		}
		filter.CourseID = id
	}
	filter.Username = c.Query("username")

	bookings, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(bookings))
}

func (h *BookingHandler) recent(c *gin.Context) {
	bookings, err := h.bookings.List(c.Request.Context(), domain.BookingFilter{Limit: recentBookingsLimit})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(bookings))
}

func (h *BookingHandler) summary(c *gin.Context) {
	summary, err := h.reporting.BookingSummary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *BookingHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) deleteTest(c *gin.Context) {
	username := c.Query("username")
	res, err := h.reporting.DeleteTestUser(c.Request.Context(), username)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.WithFields(logrus.Fields{
		"username": username,
		"admin":    c.GetString(ctxSubject),
		"bookings": res.Bookings,
	}).Warn("test user data deleted")
	c.JSON(http.StatusOK, res)
}

func (h *BookingHandler) fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

// statusOf maps domain errors to HTTP codes; anything unclassified is a 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
