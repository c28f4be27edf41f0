package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"property-marketplace/internal/appointment"
)

// AppointmentHandler handles viewing bookings
type AppointmentHandler struct {
	appointments *appointment.Service
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(svc *appointment.Service) *AppointmentHandler {
	return &AppointmentHandler{appointments: svc}
}

// Book requests a viewing
func (h *AppointmentHandler) Book(c *gin.Context) {
	var req appointment.BookRequest
	if !bindJSON(c, &req) {
		return
	}

	appt, err := h.appointments.Book(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

// List returns the caller's bookings and the bookings on their properties
func (h *AppointmentHandler) List(c *gin.Context) {
	userID := currentUserID(c)

	mine, err := h.appointments.Mine(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	incoming, err := h.appointments.Incoming(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mine":     mine,
		"incoming": incoming,
	})
}

// Confirm accepts a pending booking on the caller's property
func (h *AppointmentHandler) Confirm(c *gin.Context) {
	appt, err := h.appointments.Confirm(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// Cancel withdraws a booking from either side
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	appt, err := h.appointments.Cancel(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}
