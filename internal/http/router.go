// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ryokou/internal/http/handlers"
	"ryokou/internal/http/middleware"
	"ryokou/internal/service"
)

func NewRouter(tripPlanner *service.TripPlanner, allowedOrigins []string, log *slog.Logger) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	plannerHandler := handlers.NewPlannerHandler(tripPlanner)
	flows := r.Group("/api/flows")
	flows.POST("", plannerHandler.CreateFlow)
	flows.DELETE("/:id", plannerHandler.DeleteFlow)
	flows.POST("/:id/suggestions", plannerHandler.StartSuggestions)
	flows.GET("/:id/suggestions", plannerHandler.Suggestions)
	flows.PUT("/:id/selection", plannerHandler.Select)
	flows.POST("/:id/itinerary", plannerHandler.StartItinerary)
	flows.GET("/:id/itinerary", plannerHandler.Itinerary)
	flows.GET("/:id/itinerary/stream", plannerHandler.StreamItinerary)
	flows.POST("/:id/confirm", plannerHandler.Confirm)

	tripHandler := handlers.NewTripHandler(tripPlanner.Trips())
	trips := r.Group("/api/trips")
	trips.GET("", tripHandler.Query)
	trips.PUT("/favorite", tripHandler.Favorite)
	trips.DELETE("", tripHandler.Delete)
	trips.GET("/calendar.ics", tripHandler.Calendar)

	return middleware.CORS(allowedOrigins)(r)
}
