package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "parkalot/internal/log"
)

// Event is a VEVENT read back from a feed.
type Event struct {
	UID           string
	ReservationID int64
	Summary       string
	Status        string
	Start         time.Time
	End           time.Time
}

// ParseFeed reads the events of an iCalendar payload. Events that cannot be
// read are logged and skipped.
func ParseFeed(body []byte) ([]Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "err", perr)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (Event, error) {
	var out Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value
	out.ReservationID = reservationID(out.UID)

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Status = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("%s: %w", out.UID, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, fmt.Errorf("%s: %w", out.UID, err)
	}
	out.Start = start
	out.End = end
	return out, nil
}

// reservationID extracts the id from an EventUID, or 0 for foreign UIDs.
func reservationID(uid string) int64 {
	rest, ok := strings.CutPrefix(uid, "reservation-")
	if !ok {
		return 0
	}
	idPart, _, ok := strings.Cut(rest, "@")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
