package api

import (
	"net/http"

	"github.com/Domenick1991/coursebot/internal/service/lessons"
	"github.com/Domenick1991/coursebot/internal/service/referral"
	"github.com/Domenick1991/coursebot/internal/service/reporting"
	"github.com/gin-gonic/gin"
)

const referralsLimit = 50

// DashboardHandler serves the read-only overview pages.
type DashboardHandler struct {
	reporting reporting.ReportingUseCase
	referrals referral.ReferralUseCase
	lessons   lessons.LessonUseCase
}

func NewDashboardHandler(reporting reporting.ReportingUseCase, referrals referral.ReferralUseCase, lessons lessons.LessonUseCase) *DashboardHandler {
	return &DashboardHandler{reporting: reporting, referrals: referrals, lessons: lessons}
}

func (h *DashboardHandler) Register(router *gin.RouterGroup) {
	router.GET("/stats", h.stats)
	router.GET("/referrals", h.listReferrals)
	router.GET("/registrations", h.listRegistrations)
	router.GET("/participants/confirmed", h.confirmed)
	router.GET("/participants/unconfirmed", h.unconfirmed)
}

func (h *DashboardHandler) stats(c *gin.Context) {
	summary, err := h.reporting.Summary(c.Request.Context())
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *DashboardHandler) listReferrals(c *gin.Context) {
	coupons, err := h.referrals.Recent(c.Request.Context(), referralsLimit)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, nonNil(coupons))
}

func (h *DashboardHandler) listRegistrations(c *gin.Context) {
	regs, err := h.lessons.List(c.Request.Context(), c.Query("lesson_type"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, nonNil(regs))
}

func (h *DashboardHandler) confirmed(c *gin.Context) {
	participants, err := h.reporting.Confirmed(c.Request.Context())
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, nonNil(participants))
}

func (h *DashboardHandler) unconfirmed(c *gin.Context) {
	participants, err := h.reporting.Unconfirmed(c.Request.Context())
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, nonNil(participants))
}
