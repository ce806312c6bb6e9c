package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nodaluxe/ms-go-checkout/app/types"
)

// FunctionGuard gives every function endpoint the same method handling:
// OPTIONS answers a permissive CORS preflight, POST reaches the handler and
// anything else is rejected with 405.
func FunctionGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Response().Header()
			header.Set(echo.HeaderAccessControlAllowOrigin, "*")

			switch ctx.Request().Method {
			case http.MethodOptions:
				header.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type")
				header.Set(echo.HeaderAccessControlAllowMethods, "POST, OPTIONS")
				return ctx.NoContent(http.StatusOK)
			case http.MethodPost:
				return next(ctx)
			default:
				return ctx.JSON(http.StatusMethodNotAllowed, &types.ErrorResponse{Error: "Method not allowed"})
			}
		}
	}
}
