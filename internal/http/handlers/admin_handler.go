// Wedding data HTTP handlers.
//
// Read-only endpoints over the guest list and event schedule. The same data
// is reachable by the assistant through chat tools; these routes serve the
// planning dashboard directly:
//   - GET /guests        (guest list, optionally filtered by RSVP state)
//   - GET /guests/stats  (RSVP aggregates)
//   - GET /events        (wedding weekend schedule, chronological)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

// ListGuests godoc
// @ID          listGuests
// @Summary     List wedding guests
// @Description Returns the guest list ordered by name. The filter query parameter
// @Description narrows by RSVP state: all, confirmed, declined, maybe, no_response,
// @Description sent, pending. Unknown filters behave like "all".
// @Tags        Wedding
// @Produce     json
//
// @Param       filter  query  string  false "RSVP filter"  Enums(all, confirmed, declined, maybe, no_response, sent, pending)  default(all)
//
// @Success     200  {array}   domain.Guest
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /guests [get]
func (h *Handlers) ListGuests(c *gin.Context) {
	filter := c.DefaultQuery("filter", repo.GuestFilterAll)
	guests, err := repo.ListGuests(c.Request.Context(), h.db, filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, guests)
}

// GuestStats godoc
// @ID          guestStats
// @Summary     Guest list RSVP statistics
// @Description Returns aggregate RSVP counts, including per-party head counts.
// @Tags        Wedding
// @Produce     json
//
// @Success     200  {object}  repo.GuestStats
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /guests/stats [get]
func (h *Handlers) GuestStats(c *gin.Context) {
	stats, err := repo.GetGuestStats(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}

// ListEvents godoc
// @ID          listEvents
// @Summary     List wedding events
// @Description Returns the wedding weekend schedule in chronological order.
// @Tags        Wedding
// @Produce     json
//
// @Success     200  {array}   domain.Event
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /events [get]
func (h *Handlers) ListEvents(c *gin.Context) {
	events, err := repo.ListEvents(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, events)
}
