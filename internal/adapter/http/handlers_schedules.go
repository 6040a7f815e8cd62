package adapthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"trainschedule/internal/domain"
)

// scheduleFromPatch turns a create request into a full schedule. All fields
// but the platforms are required.
func scheduleFromPatch(p domain.SchedulePatch) (domain.Schedule, error) {
	switch {
	case p.TrainNumber == nil:
		return domain.Schedule{}, domain.Reject(domain.ReasonRequired, "trainNumber", "is required")
	case p.DepartureStationID == nil:
		return domain.Schedule{}, domain.Reject(domain.ReasonRequired, "departureStationId", "is required")
	case p.ArrivalStationID == nil:
		return domain.Schedule{}, domain.Reject(domain.ReasonRequired, "arrivalStationId", "is required")
	case p.DepartureTime == nil:
		return domain.Schedule{}, domain.Reject(domain.ReasonRequired, "departureTime", "is required")
	case p.ArrivalTime == nil:
		return domain.Schedule{}, domain.Reject(domain.ReasonRequired, "arrivalTime", "is required")
	}
	return domain.MergeSchedule(domain.Schedule{}, p), nil
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	f := domain.ScheduleFilter{StationID: r.URL.Query().Get("stationId")}
	list, err := s.schedules.List(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sch, err := s.schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sch)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req domain.SchedulePatch
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	in, err := scheduleFromPatch(req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	sch, err := s.schedules.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("schedule_id", sch.ID).Str("train", sch.TrainNumber).Msg("schedule created")
	writeJSON(w, http.StatusCreated, sch)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req domain.SchedulePatch
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	sch, err := s.schedules.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sch)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
