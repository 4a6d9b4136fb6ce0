package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
    "github.com/talebm/tutoring-enrollment/internal/repository"
)

// PublicHandler serves the unauthenticated catalogue: the active term
// and its classes with live seat availability.  These endpoints sit
// behind the response cache middleware; the seat counts are advisory
// and a little staleness is acceptable.
type PublicHandler struct {
    Classes *repository.ClassRepo
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(classes *repository.ClassRepo) *PublicHandler {
    if classes == nil {
        panic("nil class repository passed to NewPublicHandler")
    }
    return &PublicHandler{Classes: classes}
}

// ActiveTerm handles GET /v1/terms/active.  Between terms it returns
// 200 with a null term rather than an error; "no enrollment open right
// now" is a normal state for the portal to render.
func (h *PublicHandler) ActiveTerm(c echo.Context) error {
    ctx, cancel := contextTimeout(c)
    defer cancel()
    term, err := h.Classes.ActiveTerm(ctx)
    if err != nil {
        if errors.Is(err, enrollment.ErrInvalidTerm) {
            return c.JSON(http.StatusOK, echo.Map{"term": nil})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load term failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"term": term})
}

// GetClass handles GET /v1/classes/:id: one class with its live seat
// count, regardless of term.
func (h *PublicHandler) GetClass(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class id"})
    }
    ctx, cancel := contextTimeout(c)
    defer cancel()
    ca, err := h.Classes.GetWithAvailability(ctx, id)
    if errors.Is(err, sql.ErrNoRows) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load class failed"})
    }
    return c.JSON(http.StatusOK, ca)
}

// ListClasses handles GET /v1/classes.  It returns the active term
// and every open class with seats_taken, so the portal can grey out
// full classes before the student even tries.
func (h *PublicHandler) ListClasses(c echo.Context) error {
    ctx, cancel := contextTimeout(c)
    defer cancel()
    term, err := h.Classes.ActiveTerm(ctx)
    if err != nil {
        if errors.Is(err, enrollment.ErrInvalidTerm) {
            return c.JSON(http.StatusOK, echo.Map{"term": nil, "classes": []struct{}{}})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load term failed"})
    }
    classes, err := h.Classes.ListWithAvailability(ctx, term.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load classes failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"term": term, "classes": classes})
}
