package admission

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler exposes the engine and query facade over HTTP.
type Handler struct {
	engine *Engine
	query  *Query
}

func NewHandler(engine *Engine, query *Query) *Handler {
	return &Handler{engine: engine, query: query}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.AdmitPatient)
	api.GET("/patients", h.ListPatients)
	api.PUT("/patients/:id/discharge", h.DischargePatient)
	api.PUT("/patients/:id/transfer", h.TransferPatient)

	api.POST("/beds", h.RegisterBed)
	api.GET("/beds", h.ListBeds)
	api.PUT("/beds/:id", h.UpdateBedStatus)

	api.GET("/stats", h.Stats)
}

type errorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNoBedAvailable, KindBedNotAvailable, KindInvalidStateTransition, KindConflict:
		return http.StatusConflict
	case KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders the engine error envelope. Internal causes are not
// leaked: the body carries the kind and the engine's message only.
func writeError(c echo.Context, err error) error {
	kind := KindOf(err)
	msg := err.Error()
	var typed *Error
	if errors.As(err, &typed) {
		msg = typed.Message
	}
	return c.JSON(statusFor(kind), errorEnvelope{Error: errorBody{Kind: kind, Message: msg}})
}

func (h *Handler) AdmitPatient(c echo.Context) error {
	var req AdmitRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, NewError(KindValidation, "invalid request body"))
	}
	res, err := h.engine.Admit(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) DischargePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, NewError(KindValidation, "invalid patient id"))
	}
	res, err := h.engine.Discharge(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type transferRequest struct {
	BedID uuid.UUID `json:"bedId"`
}

func (h *Handler) TransferPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, NewError(KindValidation, "invalid patient id"))
	}
	var req transferRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, NewError(KindValidation, "invalid request body"))
	}
	if req.BedID == uuid.Nil {
		return writeError(c, NewError(KindValidation, "bedId is required"))
	}
	res, err := h.engine.Transfer(c.Request().Context(), id, req.BedID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListPatients(c echo.Context) error {
	items, err := h.query.ListPatients(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

type registerBedRequest struct {
	BedNumber string `json:"bedNumber"`
	Ward      string `json:"ward"`
}

func (h *Handler) RegisterBed(c echo.Context) error {
	var req registerBedRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, NewError(KindValidation, "invalid request body"))
	}
	res, err := h.engine.RegisterBed(c.Request().Context(), req.BedNumber, req.Ward)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

type updateBedRequest struct {
	Status BedStatus `json:"status"`
}

func (h *Handler) UpdateBedStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, NewError(KindValidation, "invalid bed id"))
	}
	var req updateBedRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, NewError(KindValidation, "invalid request body"))
	}
	res, err := h.engine.UpdateBedStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListBeds(c echo.Context) error {
	items, err := h.query.ListBeds(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.query.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
