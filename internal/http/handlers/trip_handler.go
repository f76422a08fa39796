// README: Saved trip handlers: query, favorite, delete and calendar export.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ryokou/internal/modules/tripplan"
	"ryokou/internal/types"
)

type TripHandler struct {
	trips *tripplan.Service
}

func NewTripHandler(svc *tripplan.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type tripKeyReq struct {
	DestinationID string     `json:"destinationId"`
	DepartureDate types.Date `json:"departureDate"`
	ReturnDate    types.Date `json:"returnDate"`
}

func (r tripKeyReq) key() tripplan.Key {
	return tripplan.Key{DestinationID: r.DestinationID, DepartureDate: r.DepartureDate, ReturnDate: r.ReturnDate}
}

type favoriteReq struct {
	tripKeyReq
	Favorite *bool `json:"favorite"`
}

// Query handles GET /api/trips?q=.
func (h *TripHandler) Query(c *gin.Context) {
	plans, err := h.trips.Query(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": plans})
}

// Favorite handles PUT /api/trips/favorite.
func (h *TripHandler) Favorite(c *gin.Context) {
	var req favoriteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Favorite == nil {
		writeError(c, http.StatusBadRequest, "missing favorite")
		return
	}
	if err := h.trips.MarkFavorite(c.Request.Context(), req.key(), *req.Favorite); err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"favorite": *req.Favorite})
}

// Delete handles DELETE /api/trips?destinationId=&departureDate=&returnDate=.
func (h *TripHandler) Delete(c *gin.Context) {
	key, ok := keyFromQuery(c)
	if !ok {
		return
	}
	if err := h.trips.Delete(c.Request.Context(), key); err != nil {
		writeTripError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Calendar handles GET /api/trips/calendar.ics?q=.
func (h *TripHandler) Calendar(c *gin.Context) {
	doc, err := h.trips.ExportCalendar(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeTripError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="trips.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(doc))
}

func keyFromQuery(c *gin.Context) (tripplan.Key, bool) {
	departure, err := types.ParseDate(c.Query("departureDate"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid departureDate")
		return tripplan.Key{}, false
	}
	ret, err := types.ParseDate(c.Query("returnDate"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid returnDate")
		return tripplan.Key{}, false
	}
	return tripplan.Key{DestinationID: c.Query("destinationId"), DepartureDate: departure, ReturnDate: ret}, true
}
