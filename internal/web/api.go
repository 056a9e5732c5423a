package web

import (
	"net/http"
	"time"

	"parkalot/internal/model"
	"parkalot/internal/reservation"
)

type createResponse struct {
	Reservation reservationDTO   `json:"reservation"`
	Chain       []reservationDTO `json:"chain"`
}

type cancelResponse struct {
	Cancelled []reservationDTO `json:"cancelled"`
}

// queryTime reads an optional from/to bound. Any format the booking form
// accepts works, plus unix seconds.
func (s *Server) queryTime(r *http.Request, key string) (time.Time, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, true
	}
	t, err := reservation.ParseTime(v, s.svc.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request, u *model.User) {
	from, ok := s.queryTime(r, "from")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, ok := s.queryTime(r, "to")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}

	list, err := s.svc.List(r.Context(), u.ID, from, to)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTOs(list, s.svc.Location(), s.svc.Now()))
}

func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request, u *model.User) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := s.checkStruct(req); len(errs) > 0 {
		writeAPIError(w, r, errs)
		return
	}

	res, err := s.svc.Create(r.Context(), req.input(u.ID))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	s.forgetFeed(u.ID)
	loc, now := s.svc.Location(), s.svc.Now()
	w.Header().Set("Location", "/api/reservations/"+formatID(res.Base.ID))
	writeJSON(w, http.StatusCreated, createResponse{
		Reservation: toDTO(res.Base, loc, now),
		Chain:       toDTOs(res.Chain, loc, now),
	})
}

func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request, u *model.User) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	res, err := s.svc.Get(r.Context(), u.ID, id)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(*res, s.svc.Location(), s.svc.Now()))
}

func (s *Server) handleAPIChain(w http.ResponseWriter, r *http.Request, u *model.User) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	chain, err := s.svc.Chain(r.Context(), u.ID, id)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTOs(chain, s.svc.Location(), s.svc.Now()))
}

func (s *Server) handleAPIUpdate(w http.ResponseWriter, r *http.Request, u *model.User) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := s.checkStruct(req); len(errs) > 0 {
		writeAPIError(w, r, errs)
		return
	}

	res, err := s.svc.Extend(r.Context(), u.ID, id, *req.Extension)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	s.forgetFeed(u.ID)
	writeJSON(w, http.StatusOK, toDTO(*res, s.svc.Location(), s.svc.Now()))
}

func (s *Server) handleAPICancel(w http.ResponseWriter, r *http.Request, u *model.User) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	chain := r.URL.Query().Get("chain")
	cancelled, err := s.svc.Cancel(r.Context(), u.ID, id, chain == "1" || chain == "true")
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	s.forgetFeed(u.ID)
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: toDTOs(cancelled, s.svc.Location(), s.svc.Now())})
}
