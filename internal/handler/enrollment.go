package handler

import (
    "database/sql"
    "errors"
    "net/http"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
    "github.com/talebm/tutoring-enrollment/internal/repository"
)

// EnrollmentHandler serves the student-facing enrollment endpoints.
// All methods assume JWT authentication has already run; the student
// record is resolved from the authenticated portal account.
type EnrollmentHandler struct {
    Ledger   *enrollment.Ledger
    Students *repository.StudentRepo
    validate *validator.Validate
}

// NewEnrollmentHandler constructs an EnrollmentHandler.  Both
// dependencies must be non-nil.
func NewEnrollmentHandler(ledger *enrollment.Ledger, students *repository.StudentRepo) *EnrollmentHandler {
    if ledger == nil || students == nil {
        panic("nil dependency passed to NewEnrollmentHandler")
    }
    return &EnrollmentHandler{
        Ledger:   ledger,
        Students: students,
        validate: validator.New(),
    }
}

type createEnrollmentReq struct {
    ClassIDs      []uint64 `json:"class_ids" validate:"required,min=1,max=10,dive,gt=0"`
    PaymentMethod string   `json:"payment_method" validate:"required,oneof=CARD ETRANSFER MANUAL"`
}

// student resolves the student record behind the authenticated user.
func (h *EnrollmentHandler) student(c echo.Context) (uint64, error) {
    userID, err := getUserID(c)
    if err != nil {
        return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := contextTimeout(c)
    defer cancel()
    s, err := h.Students.GetByUserID(ctx, userID)
    if err == sql.ErrNoRows {
        return 0, echo.NewHTTPError(http.StatusForbidden, "no student record for account")
    }
    if err != nil {
        return 0, echo.NewHTTPError(http.StatusInternalServerError, "load student failed")
    }
    return s.ID, nil
}

// Create handles POST /v1/enrollments.  The whole request is one
// batch: all classes are reserved or none are.  The response shape
// depends on the payment method: e-transfer and manual return the
// created reservations, card returns the provider redirect URL.
func (h *EnrollmentHandler) Create(c echo.Context) error {
    studentID, err := h.student(c)
    if err != nil {
        return err
    }
    var req createEnrollmentReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.validate.Struct(req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    ctx, cancel := contextTimeout(c)
    defer cancel()
    res, err := h.Ledger.Reserve(ctx, studentID, req.ClassIDs, req.PaymentMethod)
    if err != nil {
        return enrollmentError(c, err)
    }
    resp := echo.Map{}
    if res.BatchToken != "" {
        resp["batch_token"] = res.BatchToken
    }
    if res.RedirectURL != "" {
        resp["redirect_url"] = res.RedirectURL
    }
    if len(res.Reservations) > 0 {
        resp["reservations"] = res.Reservations
    }
    return c.JSON(http.StatusCreated, resp)
}

// List handles GET /v1/enrollments: the student's full reservation
// history, newest first.
func (h *EnrollmentHandler) List(c echo.Context) error {
    studentID, err := h.student(c)
    if err != nil {
        return err
    }
    ctx, cancel := contextTimeout(c)
    defer cancel()
    rows, err := h.Ledger.Reservations.ListByStudent(ctx, studentID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": rows})
}

// enrollmentError maps the ledger's sentinel errors onto HTTP
// responses.  The capacity error names the offending class so the
// student knows which one to drop from the batch.
func enrollmentError(c echo.Context, err error) error {
    var capErr *enrollment.CapacityError
    switch {
    case errors.As(err, &capErr):
        return c.JSON(http.StatusConflict, echo.Map{
            "error":    capErr.Error(),
            "class_id": capErr.ClassID,
        })
    case errors.Is(err, enrollment.ErrDuplicateReservation):
        return c.JSON(http.StatusConflict, echo.Map{"error": "already enrolled in one of the requested classes"})
    case errors.Is(err, enrollment.ErrDuplicateClassIDs):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "duplicate class ids in request"})
    case errors.Is(err, enrollment.ErrNoClasses):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one class id required"})
    case errors.Is(err, enrollment.ErrInvalidTerm):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "one or more classes are not open for enrollment"})
    case errors.Is(err, enrollment.ErrUnknownPaymentMethod):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown payment method"})
    case errors.Is(err, enrollment.ErrCardUnavailable):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "card payments are not available"})
    case errors.Is(err, enrollment.ErrBatchNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "batch not found"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "enrollment failed"})
    }
}
