package router

import (
	"github.com/labstack/echo/v4"

	"github.com/talebm/tutoring-enrollment/internal/handler"
	"github.com/talebm/tutoring-enrollment/internal/middleware"
)

// RegisterStudent wires the student‑facing enrollment endpoints.  Every
// route in this group requires a valid access token with the STUDENT
// role; the handlers resolve the student record from the token's user id.
func RegisterStudent(e *echo.Echo, enr *handler.EnrollmentHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole("STUDENT"))

	// Create a reservation batch for one or more classes.  The payment
	// method in the body decides whether the response carries a batch
	// token, a checkout redirect, or both.
	g.POST("/enrollments", enr.Create)

	// List the caller's own reservations, newest first.
	g.GET("/enrollments", enr.List)
}
