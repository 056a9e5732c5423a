package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"parkalot/internal/auth"
	"parkalot/internal/calendar"
	appLog "parkalot/internal/log"
	"parkalot/internal/metrics"
	"parkalot/internal/model"
	"parkalot/internal/reservation"
)

const defaultExtensionChoice = 2

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFrom(r.Context()); ok {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "index", pageData{Title: "Park-a-Lot"})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFrom(r.Context()); ok {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", pageData{
		Title: "Log in",
		Form:  loginForm{Next: r.URL.Query().Get("next")},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := parseLoginForm(r)
	page := pageData{Title: "Log in", Form: loginForm{Email: form.Email, Next: form.Next}}

	ip := clientIP(r)
	if s.limiter.Throttled(ip) {
		metrics.LoginAttempts.WithLabelValues("throttled").Inc()
		page.Errors = reservation.FieldErrors{"form": {"throttled"}}
		s.render(w, r, http.StatusTooManyRequests, "login", page)
		return
	}

	if errs := s.checkStruct(form); len(errs) > 0 {
		page.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "login", page)
		return
	}

	u, err := s.accounts.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.renderError(w, r, err)
			return
		}
		s.limiter.Fail(ip)
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		page.Errors = reservation.FieldErrors{"form": {"credentials"}}
		s.render(w, r, http.StatusUnauthorized, "login", page)
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	if err := s.sessions.Login(w, r, u.ID); err != nil {
		s.renderError(w, r, err)
		return
	}
	appLog.Info("user logged in", "user_id", u.ID)
	http.Redirect(w, r, safeNext(form.Next), http.StatusSeeOther)
}

// safeNext only follows local paths after login.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/profile"
	}
	return next
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(w, r); err != nil {
		appLog.Warn("logout failed", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", pageData{Title: "Register", Form: registerForm{}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form := parseRegisterForm(r)
	page := pageData{
		Title: "Register",
		Form:  registerForm{Email: form.Email, FirstName: form.FirstName, LastName: form.LastName},
	}

	if errs := s.checkStruct(form); len(errs) > 0 {
		page.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "register", page)
		return
	}

	u, err := s.accounts.Register(r.Context(), auth.Registration{
		Email:     form.Email,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Password:  form.Password,
	})
	if errors.Is(err, auth.ErrEmailTaken) {
		page.Errors = reservation.FieldErrors{"email": {"taken"}}
		s.render(w, r, http.StatusConflict, "register", page)
		return
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if err := s.sessions.Login(w, r, u.ID); err != nil {
		s.renderError(w, r, err)
		return
	}
	s.flash(w, r, "success", "Welcome to Park-a-Lot, "+u.FirstName+".")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, u *model.User) {
	ctx := r.Context()
	now := s.svc.Now()
	loc := s.svc.Location()

	total, err := s.store.CountReservations(ctx, u.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	first := time.Date(now.In(loc).Year(), now.In(loc).Month(), 1, 0, 0, 0, 0, loc)
	upcoming, err := s.svc.List(ctx, u.ID, first, first.AddDate(0, s.cfg.CalendarMonths, 0))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	weekStart := time.Sunday
	if s.cfg.WeekStart == "monday" {
		weekStart = time.Monday
	}

	s.render(w, r, http.StatusOK, "profile", pageData{
		Title: "Profile",
		Data: profileView{
			RegistrationDate:  time.Unix(u.RegistrationDate, 0).In(loc).Format("January 2, 2006"),
			TotalReservations: total,
			Months: calendar.Months(s.cfg.CalendarMonths, upcoming, calendar.Options{
				WeekStart: weekStart,
				Location:  loc,
				Now:       now,
			}),
			FeedURL: baseURL(r) + "/calendar/" + u.FeedToken + ".ics",
		},
	})
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request, _ *model.User) {
	tomorrow := s.svc.Now().In(s.svc.Location()).AddDate(0, 0, 1)
	s.render(w, r, http.StatusOK, "reservation_new", pageData{
		Title: "New reservation",
		Form: reservationForm{
			Date:     tomorrow.Format(calendar.DayLayout),
			Hour:     9,
			Meridian: "am",
			Duration: 3600,
		},
	})
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request, u *model.User) {
	form := parseReservationForm(r)
	page := pageData{Title: "New reservation", Form: form}

	if errs := s.checkStruct(form); len(errs) > 0 {
		page.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "reservation_new", page)
		return
	}

	res, err := s.svc.Create(r.Context(), form.input(u.ID))
	var fe reservation.FieldErrors
	if errors.As(err, &fe) {
		page.Errors = fe
		s.render(w, r, http.StatusUnprocessableEntity, "reservation_new", page)
		return
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	s.forgetFeed(u.ID)
	msg := "Your reservation has been created successfully."
	if n := len(res.Chain); n > 0 {
		msg = "Your reservation and " + formatID(int64(n)) + " recurrences have been created successfully."
	}
	s.flash(w, r, "success", msg)
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (s *Server) handleDayList(w http.ResponseWriter, r *http.Request, u *model.User) {
	loc := s.svc.Location()
	day, err := time.ParseInLocation(calendar.DayLayout, r.PathValue("day"), loc)
	if err != nil {
		s.renderStatus(w, r, http.StatusNotFound, "No such day.")
		return
	}

	list, err := s.svc.List(r.Context(), u.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "reservation_list", pageData{
		Title: "Reservations on " + day.Format("January 2, 2006"),
		Data:  dayListView{Day: day.Format("Monday, January 2, 2006"), Reservations: list},
	})
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request, u *model.User) {
	id, ok := pathID(r)
	if !ok {
		s.renderStatus(w, r, http.StatusNotFound, "No such reservation.")
		return
	}
	res, err := s.svc.Get(r.Context(), u.ID, id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "reservation_edit", pageData{
		Title: "Edit reservation",
		Data:  newEditView(res, s.svc.Now(), defaultExtensionChoice),
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, u *model.User) {
	id, ok := pathID(r)
	if !ok {
		s.renderStatus(w, r, http.StatusNotFound, "No such reservation.")
		return
	}
	form := parseEditForm(r)

	errs := s.checkStruct(form)
	if len(errs) == 0 {
		_, err := s.svc.Extend(r.Context(), u.ID, id, form.Extension)
		var fe reservation.FieldErrors
		switch {
		case errors.As(err, &fe):
			errs = fe
		case err != nil:
			s.renderError(w, r, err)
			return
		default:
			s.forgetFeed(u.ID)
			s.flash(w, r, "success", "Your reservation has been updated.")
			http.Redirect(w, r, "/reservation/edit/"+formatID(id), http.StatusSeeOther)
			return
		}
	}

	res, err := s.svc.Get(r.Context(), u.ID, id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusUnprocessableEntity, "reservation_edit", pageData{
		Title:  "Edit reservation",
		Errors: errs,
		Data:   newEditView(res, s.svc.Now(), form.Extension),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, u *model.User) {
	id, ok := pathID(r)
	if !ok {
		s.renderStatus(w, r, http.StatusNotFound, "No such reservation.")
		return
	}
	chain := r.PostFormValue("chain") != ""

	cancelled, err := s.svc.Cancel(r.Context(), u.ID, id, chain)
	switch {
	case errors.Is(err, reservation.ErrNotCancellable), errors.Is(err, reservation.ErrNotActive):
		s.flash(w, r, "error", "This reservation can no longer be cancelled.")
		http.Redirect(w, r, "/reservation/edit/"+formatID(id), http.StatusSeeOther)
		return
	case err != nil:
		s.renderError(w, r, err)
		return
	}

	s.forgetFeed(u.ID)
	msg := "Your reservation has been cancelled."
	if len(cancelled) > 1 {
		msg = formatID(int64(len(cancelled))) + " reservations have been cancelled."
	}
	s.flash(w, r, "success", msg)
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// renderError shows the error page with the status statusFor picks.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	switch status {
	case http.StatusInternalServerError:
		appLog.Error("request failed", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
		)
		msg = "Something went wrong. Please try again."
	case http.StatusNotFound, http.StatusForbidden:
		// Other users' reservations look the same as missing ones.
		status = http.StatusNotFound
		msg = "No such reservation."
	}
	s.renderStatus(w, r, status, msg)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error", pageData{Title: http.StatusText(status), Data: msg})
}

// baseURL reconstructs the externally visible origin of r.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
