package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parkalot/internal/model"
)

func TestReservationFilterMatch(t *testing.T) {
	r := &model.Reservation{UserID: 3, StartTime: 1000, Status: model.StatusActive}

	tests := []struct {
		name   string
		filter ReservationFilter
		want   bool
	}{
		{"empty filter", ReservationFilter{}, true},
		{"other user", ReservationFilter{UserID: 4}, false},
		{"inside bounds", ReservationFilter{StartAfter: 999, StartBefore: 1001}, true},
		{"after bound is exclusive", ReservationFilter{StartAfter: 1000}, false},
		{"before bound is exclusive", ReservationFilter{StartBefore: 1000}, false},
		{"status match", ReservationFilter{Statuses: []model.Status{model.StatusCancelled, model.StatusActive}}, true},
		{"status mismatch", ReservationFilter{Statuses: []model.Status{model.StatusCompleted}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(r))
		})
	}
}
