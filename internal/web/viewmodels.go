package web

import (
	"fmt"
	"time"

	"parkalot/internal/calendar"
	"parkalot/internal/ics"
	"parkalot/internal/model"
	"parkalot/internal/reservation"
)

// maxExtensionBlocks bounds a single edit in either direction.
const maxExtensionBlocks = 6

type extensionChoice struct {
	Value    int64
	Label    string
	Selected bool
}

// extensionChoices lists the edit options from -6 to +6 blocks, skipping 0.
func extensionChoices(selected int64) []extensionChoice {
	out := make([]extensionChoice, 0, 2*maxExtensionBlocks)
	for i := int64(-maxExtensionBlocks); i <= maxExtensionBlocks; i++ {
		if i == 0 {
			continue
		}
		seconds := i * reservation.ExtensionBlock
		verb := "Increase by"
		if i < 0 {
			verb = "Decrease by"
			seconds = -seconds
		}
		out = append(out, extensionChoice{
			Value:    i,
			Label:    fmt.Sprintf("%s %02d:%02d", verb, seconds/3600, seconds%3600/60),
			Selected: i == selected,
		})
	}
	return out
}

type editView struct {
	Reservation  model.Reservation
	EffectiveEnd int64
	Duration     string
	Recurring    string
	Active       bool
	Extensions   []extensionChoice
	CanCancel    bool
}

func newEditView(r *model.Reservation, now time.Time, selected int64) editView {
	recurring := "N"
	if r.Recurring {
		recurring = "Y"
	}
	return editView{
		Reservation:  *r,
		EffectiveEnd: r.EffectiveEnd(),
		Duration:     ics.FormatSpan(r.EffectiveEnd() - r.StartTime),
		Recurring:    recurring,
		Active:       r.Active(),
		Extensions:   extensionChoices(selected),
		CanCancel:    reservation.CanCancel(r, now),
	}
}

type profileView struct {
	RegistrationDate  string
	TotalReservations int64
	Months            []calendar.Month
	FeedURL           string
}

type dayListView struct {
	Day          string
	Reservations []model.Reservation
}

// reservationDTO is the JSON shape of a reservation.
type reservationDTO struct {
	model.Reservation
	EffectiveEnd int64     `json:"effective_end"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	CanCancel    bool      `json:"can_cancel"`
}

func toDTO(r model.Reservation, loc *time.Location, now time.Time) reservationDTO {
	return reservationDTO{
		Reservation:  r,
		EffectiveEnd: r.EffectiveEnd(),
		Start:        r.Start(loc),
		End:          r.End(loc),
		CanCancel:    reservation.CanCancel(&r, now),
	}
}

func toDTOs(rs []model.Reservation, loc *time.Location, now time.Time) []reservationDTO {
	out := make([]reservationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toDTO(r, loc, now))
	}
	return out
}
