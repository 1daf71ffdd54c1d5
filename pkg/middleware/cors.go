package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4/middleware"
)

// CORSConfig allows the web frontend to call the API with credentials.
// Additional origins (e.g. a staging frontend) may be appended.
func CORSConfig(frontendURL string, extraOrigins ...string) middleware.CORSConfig {
	origins := append([]string{frontendURL}, extraOrigins...)

	return middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
		ExposeHeaders: []string{
			"X-Usage-Limit",
			"X-Usage-Remaining",
		},
	}
}
