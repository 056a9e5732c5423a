package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/mo"

	"parkalot/internal/reservation"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their wire name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// checkStruct validates v and converts failures to field errors. The
// validator's "required" tag is reported as not_empty like the engine does.
func (s *Server) checkStruct(v any) reservation.FieldErrors {
	errs := reservation.FieldErrors{}
	err := s.validate.Struct(v)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("form", "invalid")
		return errs
	}
	for _, fe := range verrs {
		code := fe.Tag()
		if code == "required" {
			code = reservation.CodeNotEmpty
		}
		errs.Add(fe.Field(), code)
	}
	return errs
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}

type registerForm struct {
	Email     string `form:"email" validate:"required,email,max=255"`
	FirstName string `form:"first_name" validate:"required,max=100"`
	LastName  string `form:"last_name" validate:"required,max=100"`
	Password  string `form:"password" validate:"required,min=8,max=72"`
	Confirm   string `form:"password_confirm" validate:"eqfield=Password"`
}

// reservationForm is the booking form: a date plus time of day and a
// duration, with an optional recurrence.
type reservationForm struct {
	Date          string `form:"date" validate:"required"`
	Hour          int    `form:"hour" validate:"min=1,max=12"`
	Minute        int    `form:"minute" validate:"min=0,max=59"`
	Meridian      string `form:"meridian" validate:"oneof=am pm"`
	Duration      int64  `form:"duration" validate:"required,gt=0"`
	Recurrence    string `form:"recurrence"`
	EndRecurrence string `form:"end_recurrence"`
}

func (f reservationForm) input(userID int64) reservation.Input {
	return reservation.Input{
		UserID:        userID,
		Date:          f.Date,
		Time:          &reservation.TimeOfDay{Hour: f.Hour, Minute: f.Minute, Meridian: f.Meridian},
		Duration:      mo.Some(f.Duration),
		Recurrence:    f.Recurrence,
		EndRecurrence: f.EndRecurrence,
	}
}

// editForm carries the extension choice of the edit page.
type editForm struct {
	Extension int64 `form:"extension" validate:"min=-6,max=6,ne=0"`
}

func parseLoginForm(r *http.Request) loginForm {
	return loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Next:     r.PostFormValue("next"),
	}
}

func parseRegisterForm(r *http.Request) registerForm {
	return registerForm{
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		FirstName: strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:  strings.TrimSpace(r.PostFormValue("last_name")),
		Password:  r.PostFormValue("password"),
		Confirm:   r.PostFormValue("password_confirm"),
	}
}

func parseReservationForm(r *http.Request) reservationForm {
	return reservationForm{
		Date:          strings.TrimSpace(r.PostFormValue("date")),
		Hour:          parseIntDefault(r.PostFormValue("hour"), 0),
		Minute:        parseIntDefault(r.PostFormValue("minute"), 0),
		Meridian:      strings.ToLower(strings.TrimSpace(r.PostFormValue("meridian"))),
		Duration:      int64(parseIntDefault(r.PostFormValue("duration"), 0)),
		Recurrence:    strings.TrimSpace(r.PostFormValue("recurrence")),
		EndRecurrence: strings.TrimSpace(r.PostFormValue("end_recurrence")),
	}
}

func parseEditForm(r *http.Request) editForm {
	return editForm{Extension: int64(parseIntDefault(r.PostFormValue("extension"), 0))}
}

// flexTime accepts a unix timestamp or a date/time string.
type flexTime reservation.Timestamp

func (f *flexTime) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexTime(reservation.At(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a unix timestamp or a string")
	}
	*f = flexTime(reservation.Text(s))
	return nil
}

// createRequest is the JSON body of POST /api/reservations.
type createRequest struct {
	Date          string                 `json:"date"`
	Time          *reservation.TimeOfDay `json:"time" validate:"omitempty"`
	StartTime     flexTime               `json:"start_time"`
	EndTime       flexTime               `json:"end_time"`
	Duration      *int64                 `json:"duration" validate:"omitempty,gt=0"`
	Recurrence    json.Number            `json:"recurrence"`
	EndRecurrence string                 `json:"end_recurrence"`
}

func (c createRequest) input(userID int64) reservation.Input {
	in := reservation.Input{
		UserID:        userID,
		Date:          c.Date,
		Time:          c.Time,
		StartTime:     reservation.Timestamp(c.StartTime),
		EndTime:       reservation.Timestamp(c.EndTime),
		Recurrence:    c.Recurrence.String(),
		EndRecurrence: c.EndRecurrence,
	}
	if c.Duration != nil {
		in.Duration = mo.Some(*c.Duration)
	}
	return in
}

// updateRequest is the JSON body of PATCH /api/reservations/{id}.
type updateRequest struct {
	Extension *int64 `json:"extension" validate:"required,min=-6,max=6,ne=0"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
