// README: Planning flow handlers: suggestions, selection, itinerary (with SSE) and confirmation.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ryokou/internal/modules/planner"
	"ryokou/internal/service"
	"ryokou/internal/types"
)

type PlannerHandler struct {
	planner *service.TripPlanner
}

func NewPlannerHandler(tp *service.TripPlanner) *PlannerHandler {
	return &PlannerHandler{planner: tp}
}

type createFlowReq struct {
	Context *planner.TripContext `json:"context"`
}

type selectionReq struct {
	Flight *types.FlightResult `json:"flight"`
	Hotel  *types.HotelResult  `json:"hotel"`
}

type confirmReq struct {
	Favorite *bool `json:"favorite"`
}

// CreateFlow handles POST /api/flows. The body is optional.
func (h *PlannerHandler) CreateFlow(c *gin.Context) {
	var req createFlowReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	f, err := h.planner.CreateFlow(req.Context)
	if err != nil {
		writePlannerError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"flowId": f.ID})
}

// DeleteFlow handles DELETE /api/flows/:id.
func (h *PlannerHandler) DeleteFlow(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	h.planner.DeleteFlow(id)
	c.Status(http.StatusNoContent)
}

// StartSuggestions handles POST /api/flows/:id/suggestions.
func (h *PlannerHandler) StartSuggestions(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var tc planner.TripContext
	if err := c.ShouldBindJSON(&tc); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	st, err := h.planner.StartSuggestions(c.Request.Context(), id, tc)
	if err != nil {
		writePlannerError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, st)
}

// Suggestions handles GET /api/flows/:id/suggestions.
func (h *PlannerHandler) Suggestions(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	st, err := h.planner.Suggestions(id)
	if err != nil {
		writePlannerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

// Select handles PUT /api/flows/:id/selection.
func (h *PlannerHandler) Select(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var req selectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Flight == nil && req.Hotel == nil {
		writeError(c, http.StatusBadRequest, "missing flight or hotel")
		return
	}
	if req.Hotel != nil && req.Hotel.Name == "" {
		writeError(c, http.StatusBadRequest, "hotel name is required")
		return
	}
	tc, err := h.planner.Select(id, req.Flight, req.Hotel)
	if err != nil {
		writePlannerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"context": tc})
}

// StartItinerary handles POST /api/flows/:id/itinerary.
func (h *PlannerHandler) StartItinerary(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	view, err := h.planner.StartItinerary(c.Request.Context(), id)
	if err != nil {
		writePlannerError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, view)
}

// Itinerary handles GET /api/flows/:id/itinerary.
func (h *PlannerHandler) Itinerary(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	view, err := h.planner.Itinerary(id)
	if err != nil {
		writePlannerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view)
}

// StreamItinerary handles GET /api/flows/:id/itinerary/stream as server-sent
// events. The stream ends once the run settles or the client goes away.
func (h *PlannerHandler) StreamItinerary(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	views, stop, err := h.planner.WatchItinerary(id)
	if err != nil {
		writePlannerError(c, err)
		return
	}
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case v, ok := <-views:
			if !ok {
				return false
			}
			c.SSEvent(string(v.Phase), v)
			return v.Phase != planner.PhaseSucceeded && v.Phase != planner.PhaseFailed
		}
	})
}

// Confirm handles POST /api/flows/:id/confirm.
func (h *PlannerHandler) Confirm(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var req confirmReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	plan, err := h.planner.Confirm(c.Request.Context(), id, req.Favorite)
	if err != nil {
		writePlannerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, plan)
}

func flowID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid flow id")
		return "", false
	}
	return id, true
}
