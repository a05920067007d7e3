package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanvida/hms-api/internal/service"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
	"github.com/sanvida/hms-api/pkg/response"
)

// RoomHandler exposes room, bed and admission endpoints.
type RoomHandler struct {
	beds *service.BedService
}

// NewRoomHandler constructs RoomHandler.
func NewRoomHandler(beds *service.BedService) *RoomHandler {
	return &RoomHandler{beds: beds}
}

// ListRooms godoc
// @Summary List rooms
// @Tags Rooms
// @Produce json
// @Param department query string false "Filter by department"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.beds.ListRooms(c.Request.Context(), c.Query("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// GetRoom godoc
// @Summary Get room with its beds
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [get]
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, beds, err := h.beds.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"room": room, "beds": beds}, nil)
}

// CreateRoom godoc
// @Summary Create room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body service.CreateRoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.beds.CreateRoom(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// AddBed godoc
// @Summary Add a bed to a room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 201 {object} response.Envelope
// @Router /rooms/{id}/beds [post]
func (h *RoomHandler) AddBed(c *gin.Context) {
	bed, err := h.beds.AddBed(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bed)
}

// Admit godoc
// @Summary Admit a patient to a bed
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.AdmitRequest true "Admission payload"
// @Success 201 {object} response.Envelope
// @Router /admissions [post]
func (h *RoomHandler) Admit(c *gin.Context) {
	var req service.AdmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.beds.Admit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Discharge godoc
// @Summary Discharge an admitted patient
// @Tags Admissions
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /admissions/{id}/discharge [post]
func (h *RoomHandler) Discharge(c *gin.Context) {
	if err := h.beds.Discharge(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListAdmitted godoc
// @Summary List currently admitted patients
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions [get]
func (h *RoomHandler) ListAdmitted(c *gin.Context) {
	admitted, err := h.beds.ListAdmitted(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admitted, nil)
}

// ConfirmCleaning godoc
// @Summary Mark a cleaned bed as available
// @Tags Beds
// @Produce json
// @Param id path string true "Bed ID"
// @Success 204
// @Router /beds/{id}/clean [post]
func (h *RoomHandler) ConfirmCleaning(c *gin.Context) {
	if err := h.beds.ConfirmCleaning(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BlockBed godoc
// @Summary Block a bed for maintenance
// @Tags Beds
// @Produce json
// @Param id path string true "Bed ID"
// @Success 204
// @Router /beds/{id}/block [post]
func (h *RoomHandler) BlockBed(c *gin.Context) {
	if err := h.beds.BlockBed(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnblockBed godoc
// @Summary Return a blocked bed to service
// @Tags Beds
// @Produce json
// @Param id path string true "Bed ID"
// @Success 204
// @Router /beds/{id}/unblock [post]
func (h *RoomHandler) UnblockBed(c *gin.Context) {
	if err := h.beds.UnblockBed(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AvailableRooms godoc
// @Summary Rooms with free beds
// @Tags Availability
// @Produce json
// @Param department query string false "Filter by department"
// @Success 200 {object} response.Envelope
// @Router /availability/rooms [get]
func (h *RoomHandler) AvailableRooms(c *gin.Context) {
	items, err := h.beds.AvailableRooms(c.Request.Context(), c.Query("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AvailableBeds godoc
// @Summary Free beds in a room
// @Tags Availability
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Router /availability/rooms/{id}/beds [get]
func (h *RoomHandler) AvailableBeds(c *gin.Context) {
	items, err := h.beds.AvailableBeds(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// JoinWaitlist godoc
// @Summary Add a patient to the bed waitlist
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.WaitlistRequest true "Waitlist payload"
// @Success 201 {object} response.Envelope
// @Router /waitlist [post]
func (h *RoomHandler) JoinWaitlist(c *gin.Context) {
	var req service.WaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.beds.JoinWaitlist(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Waitlist godoc
// @Summary List the bed waitlist
// @Tags Admissions
// @Produce json
// @Param department query string false "Filter by department"
// @Success 200 {object} response.Envelope
// @Router /waitlist [get]
func (h *RoomHandler) Waitlist(c *gin.Context) {
	entries, err := h.beds.Waitlist(c.Request.Context(), c.Query("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// LeaveWaitlist godoc
// @Summary Remove a waitlist entry
// @Tags Admissions
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 204
// @Router /waitlist/{id} [delete]
func (h *RoomHandler) LeaveWaitlist(c *gin.Context) {
	if err := h.beds.LeaveWaitlist(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
