package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"parkalot/internal/auth"
	"parkalot/internal/ics"
	appLog "parkalot/internal/log"
	"parkalot/internal/model"
	"parkalot/internal/reservation"
)

// embeddedTemplates holds the HTML views. layout.html wraps every page,
// which defines "title" and "content".
//
//go:embed templates/*.html
var embeddedTemplates embed.FS

type views struct {
	pages map[string]*template.Template
}

// errorMessages are the human readable texts for validation codes.
var errorMessages = map[string]string{
	reservation.CodeNotEmpty:             "must not be empty",
	reservation.CodeOnHalfHour:           "must be on the hour or half hour",
	reservation.CodeMinReservationLength: "reservations must last at least 30 minutes",
	reservation.CodeMinTimeBeforeStart:   "must be at least 30 minutes from now",
	reservation.CodeMaxTimeBeforeStart:   "must be within the next 12 weeks",
	reservation.CodeMinTimeBeforeEnd:     "must leave at least 30 minutes before the end",
	reservation.CodeDigit:                "must be a whole number",
	reservation.CodeDate:                 "is not a valid date or time",
	reservation.CodeExists:               "does not exist",
	"email":                              "must be a valid email address",
	"taken":                              "is already registered",
	"credentials":                        "email or password is incorrect",
	"throttled":                          "too many attempts, try again in a minute",
	"eqfield":                            "does not match",
	"min":                                "is too short",
	"max":                                "is too long",
	"oneof":                              "is not an allowed choice",
	"ne":                                 "is not an allowed choice",
	"gt":                                 "must be positive",
}

func loadViews(loc *time.Location) (*views, error) {
	funcs := template.FuncMap{
		"datetime": func(unix int64) string {
			return time.Unix(unix, 0).In(loc).Format("Jan 2, 3:04 pm")
		},
		"clock": func(unix int64) string {
			return time.Unix(unix, 0).In(loc).Format("3:04 pm")
		},
		"span": ics.FormatSpan,
		"messages": func(errs reservation.FieldErrors, field string) []string {
			out := make([]string, 0, len(errs[field]))
			for _, code := range errs[field] {
				if msg, ok := errorMessages[code]; ok {
					out = append(out, msg)
				} else {
					out = append(out, code)
				}
			}
			return out
		},
		"hours": func() []int {
			return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
		},
		"durations": func() []int64 {
			out := make([]int64, 0, 24)
			for d := reservation.TimeBlock; d <= 12*3600; d += reservation.TimeBlock {
				out = append(out, d)
			}
			return out
		},
		"label": func(field string) string {
			return strings.ReplaceAll(field, "_", " ")
		},
	}

	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(embeddedTemplates, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	v := &views{pages: make(map[string]*template.Template)}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "layout" {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(embeddedTemplates, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// pageData is the root value of every template.
type pageData struct {
	Title   string
	User    *model.User
	Flashes []auth.Flash
	Errors  reservation.FieldErrors
	Form    any
	Data    any
}

// render executes page inside the layout. Pending flashes are consumed.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	t, ok := s.views.pages[page]
	if !ok {
		appLog.Error("unknown view", fmt.Errorf("view %q not found", page))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if u, ok := auth.UserFrom(r.Context()); ok {
		data.User = u
	}
	data.Flashes = s.sessions.Flashes(w, r)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		appLog.Error("render view failed", err, "view", page, "request_id", requestIDFrom(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// flash queues a notification, logging rather than failing the request.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	if err := s.sessions.AddFlash(w, r, kind, msg); err != nil {
		appLog.Warn("flash not saved", "err", err)
	}
}
