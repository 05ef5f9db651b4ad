package response

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Cross-origin headers sent on every response.
var corsHeaders = map[string]string{
	echo.HeaderAccessControlAllowOrigin:  "*",
	echo.HeaderAccessControlAllowMethods: "GET, POST, OPTIONS",
	echo.HeaderAccessControlAllowHeaders: "Content-Type, Authorization",
	echo.HeaderAccessControlMaxAge:       "86400",
}

// APIError is the error response shape.
type APIError struct {
	Error string `json:"error"`
}

// SetCORS writes the cross-origin headers onto h.
func SetCORS(h http.Header) {
	for k, v := range corsHeaders {
		h.Set(k, v)
	}
}

// CORS sets the cross-origin headers before the handler runs so that they are
// present on success, error and not-found responses alike.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			SetCORS(c.Response().Header())
			return next(c)
		}
	}
}

// Preflight answers OPTIONS on any path with 204 and only the cross-origin
// headers. It must run before routing.
func Preflight() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodOptions {
				return next(c)
			}
			SetCORS(c.Response().Header())
			return c.NoContent(http.StatusNoContent)
		}
	}
}

// JSON sends payload with the given status. A zero status means 200.
func JSON(c echo.Context, status int, payload any) error {
	if status == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, payload)
}

// Raw sends an already encoded JSON document as is.
func Raw(c echo.Context, status int, body json.RawMessage) error {
	return c.Blob(status, echo.MIMEApplicationJSON, body)
}

// Created sends 201 with payload.
func Created(c echo.Context, payload any) error {
	return JSON(c, http.StatusCreated, payload)
}

// Error sends {"error": message} with status.
func Error(c echo.Context, status int, message string) error {
	return c.JSON(status, APIError{Error: message})
}

// BadRequest sends 400 with message.
func BadRequest(c echo.Context, message string) error {
	return Error(c, http.StatusBadRequest, message)
}

// InternalError sends 500 with message.
func InternalError(c echo.Context, message string) error {
	return Error(c, http.StatusInternalServerError, message)
}

// NotFound sends a plain text 404.
func NotFound(c echo.Context) error {
	return c.String(http.StatusNotFound, "Not Found")
}
