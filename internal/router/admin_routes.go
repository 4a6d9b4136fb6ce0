package router

import (
	"github.com/labstack/echo/v4"

	"github.com/talebm/tutoring-enrollment/internal/handler"
	"github.com/talebm/tutoring-enrollment/internal/middleware"
)

// RegisterAdmin wires the back-office endpoints: confirming and
// cancelling batches on behalf of students, triggering the sweepers by
// hand, and inspecting a student's reservation history.  Everything in
// this group requires the ADMIN role.
func RegisterAdmin(e *echo.Echo, adm *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole("ADMIN"))

	// Batch transitions.  Confirm is used when an e-transfer arrives or a
	// manual registration is approved; cancel requires a reason string.
	g.POST("/batches/:token/confirm", adm.ConfirmBatch)
	g.POST("/batches/:token/cancel", adm.CancelBatch)

	// Manual sweep triggers.  The scheduler runs these on an interval, but
	// operators occasionally want an immediate pass after fixing data.
	g.POST("/sweeps/expiry", adm.RunExpirySweep)
	g.POST("/sweeps/reminders", adm.RunReminderSweep)

	// Reservation history for a single student.
	g.GET("/students/:id/enrollments", adm.ListStudentBatches)
}
