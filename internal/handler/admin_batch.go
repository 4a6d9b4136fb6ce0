package handler

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
)

// AdminHandler serves the staff endpoints: confirming e-transfer
// batches once payment arrives, cancelling batches, and triggering
// the background sweeps by hand.  Routes using this handler must be
// wrapped in RequireRole(ADMIN).
type AdminHandler struct {
    Ledger    *enrollment.Ledger
    Expiry    *enrollment.ExpirySweeper
    Reminders *enrollment.ReminderSweeper
}

// NewAdminHandler constructs an AdminHandler.  The ledger is
// required; sweepers may be nil when the corresponding sweep is
// disabled, in which case the manual trigger returns 503.
func NewAdminHandler(ledger *enrollment.Ledger, expiry *enrollment.ExpirySweeper, reminders *enrollment.ReminderSweeper) *AdminHandler {
    if ledger == nil {
        panic("nil ledger passed to NewAdminHandler")
    }
    return &AdminHandler{Ledger: ledger, Expiry: expiry, Reminders: reminders}
}

type batchActionReq struct {
    StudentID uint64 `json:"student_id"`
    Reason    string `json:"reason"`
}

// ConfirmBatch handles POST /v1/admin/batches/:token/confirm.  Staff
// call this after verifying the e-transfer arrived.  Confirming an
// already confirmed batch is a no-op success; a lapsed batch is 404.
func (h *AdminHandler) ConfirmBatch(c echo.Context) error {
    token := strings.TrimSpace(c.Param("token"))
    var req batchActionReq
    if err := c.Bind(&req); err != nil || req.StudentID == 0 || token == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "student_id and batch token required"})
    }
    ctx, cancel := contextTimeout(c)
    defer cancel()
    moved, err := h.Ledger.ConfirmBatch(ctx, req.StudentID, token)
    if err != nil {
        return enrollmentError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"confirmed": len(moved), "reservations": moved})
}

// CancelBatch handles POST /v1/admin/batches/:token/cancel.  The
// reason is recorded on every cancelled row for audit.
func (h *AdminHandler) CancelBatch(c echo.Context) error {
    token := strings.TrimSpace(c.Param("token"))
    var req batchActionReq
    if err := c.Bind(&req); err != nil || req.StudentID == 0 || token == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "student_id and batch token required"})
    }
    if strings.TrimSpace(req.Reason) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason required"})
    }
    ctx, cancel := contextTimeout(c)
    defer cancel()
    moved, err := h.Ledger.CancelBatch(ctx, req.StudentID, token, req.Reason)
    if err != nil {
        return enrollmentError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"cancelled": len(moved), "reservations": moved})
}

// RunExpirySweep handles POST /v1/admin/sweeps/expiry.  It runs one
// sweep immediately and returns its summary; the scheduled sweep is
// unaffected.  Safe to call any number of times.
func (h *AdminHandler) RunExpirySweep(c echo.Context) error {
    if h.Expiry == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "expiry sweep disabled"})
    }
    ctx, cancel := contextTimeout(c)
    defer cancel()
    res, err := h.Expiry.Run(ctx, time.Now().UTC())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
    }
    return c.JSON(http.StatusOK, res)
}

// RunReminderSweep handles POST /v1/admin/sweeps/reminders.
func (h *AdminHandler) RunReminderSweep(c echo.Context) error {
    if h.Reminders == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "reminder sweep disabled"})
    }
    ctx, cancel := contextTimeout(c)
    defer cancel()
    res, err := h.Reminders.Run(ctx, time.Now().UTC())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
    }
    return c.JSON(http.StatusOK, res)
}

// ListStudentBatches handles GET /v1/admin/students/:id/enrollments,
// the staff view of one student's reservation history.
func (h *AdminHandler) ListStudentBatches(c echo.Context) error {
    studentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || studentID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
    }
    ctx, cancel := contextTimeout(c)
    defer cancel()
    rows, err := h.Ledger.Reservations.ListByStudent(ctx, studentID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": rows})
}
