package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bookwell/reservation-service/internal/dto"
	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/internal/service"
	"github.com/labstack/echo/v4"
)

type ReservationHandler struct {
	slots     service.SlotService
	booking   service.BookingService
	lifecycle service.LifecycleService
}

func NewReservationHandler(slots service.SlotService, booking service.BookingService, lifecycle service.LifecycleService) *ReservationHandler {
	return &ReservationHandler{slots: slots, booking: booking, lifecycle: lifecycle}
}

func (h *ReservationHandler) RegisterRoutes(e *echo.Echo) {
	shops := e.Group("/api/v1/shops")
	shops.GET("/:id/slots", h.GetAvailableSlots)
	shops.POST("/:id/reservations", h.CreateReservation)
	shops.GET("/:id/reservations", h.ListReservations)

	reservations := e.Group("/api/v1/reservations")
	reservations.GET("/:id", h.GetReservation)
	reservations.POST("/:id/confirm", h.ConfirmReservation)
	reservations.POST("/:id/cancel", h.CancelReservation)
	reservations.POST("/:id/check-in", h.CheckIn)

	e.POST("/api/v1/internal/sweep", h.RunSweep)
}

func (h *ReservationHandler) GetAvailableSlots(c echo.Context) error {
	shopID, err := paramID(c)
	if err != nil {
		return err
	}

	date, err := dto.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	serviceIDs, err := dto.ParseServiceIDs(c.QueryParam("service_ids"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	slots, err := h.slots.GetAvailableSlots(c.Request().Context(), shopID, date, serviceIDs)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToSlotResponse(slots))
}

func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	shopID, err := paramID(c)
	if err != nil {
		return err
	}

	var req dto.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CustomerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id is required")
	}
	if len(req.ServiceIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "service_ids is required")
	}

	date, err := dto.ParseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	startMinute, err := dto.ParseHHMM(req.StartTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	reservation, err := h.booking.CreateReservation(c.Request().Context(), service.CreateReservationInput{
		ShopID:      shopID,
		CustomerID:  req.CustomerID,
		ServiceIDs:  req.ServiceIDs,
		Date:        date,
		StartMinute: startMinute,
		Notes:       req.Notes,
		PaymentRef:  req.PaymentRef,
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) GetReservation(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	reservation, err := h.booking.GetReservation(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) ListReservations(c echo.Context) error {
	shopID, err := paramID(c)
	if err != nil {
		return err
	}

	var status *models.ReservationStatus
	if s := c.QueryParam("status"); s != "" {
		rs := models.ReservationStatus(s)
		status = &rs
	}

	reservations, err := h.booking.ListByShop(c.Request().Context(), shopID, status)
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]dto.ReservationResponse, len(reservations))
	for i := range reservations {
		resp[i] = dto.ToReservationResponse(&reservations[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) ConfirmReservation(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req dto.TransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	actor := models.Actor(req.Actor)
	if actor == "" {
		actor = models.ActorShop
	}

	reservation, err := h.lifecycle.Transition(c.Request().Context(), id, models.StatusConfirmed, actor, req.ActorID, req.Reason)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req dto.TransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var target models.ReservationStatus
	switch models.Actor(req.Actor) {
	case models.ActorCustomer:
		target = models.StatusCancelledByUser
	case models.ActorShop, models.ActorSystem:
		target = models.StatusCancelledByShop
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "actor must be customer, shop or system")
	}

	reservation, err := h.lifecycle.Transition(c.Request().Context(), id, target, models.Actor(req.Actor), req.ActorID, req.Reason)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) CheckIn(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	reservation, err := h.lifecycle.CheckIn(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) RunSweep(c echo.Context) error {
	result, err := h.lifecycle.RunAutomaticSweep(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, dto.SweepResponse{ProcessedCount: result.ProcessedCount})
}

func paramID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrShopNotFound),
		errors.Is(err, service.ErrReservationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSlotUnavailable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrLockTimeout):
		return echo.NewHTTPError(http.StatusLocked, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrCancelAfterStart):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRefundAlreadyProcessed),
		errors.Is(err, service.ErrRefundExceedsPaid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrExternalService):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
