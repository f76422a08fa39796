// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ryokou/internal/modules/planner"
	"ryokou/internal/modules/tripplan"
	"ryokou/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts flow ids as issued by the registry (UUIDs).
func isValidID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writePlannerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, planner.ErrInvalidContext):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, planner.ErrFlowNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, planner.ErrNoContext), errors.Is(err, service.ErrItineraryPending):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeTripError(c, err)
	}
}

func writeTripError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tripplan.ErrInvalidPlan):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, tripplan.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
