package adapthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"trainschedule/internal/domain"
)

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	list, err := s.stations.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearchStations(w http.ResponseWriter, r *http.Request) {
	list, err := s.stations.SearchByName(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	st, err := s.stations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	var req domain.StationPatch
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	in := domain.MergeStation(domain.Station{}, req)

	st, err := s.stations.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("station_id", st.ID).Msg("station created")
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleUpdateStation(w http.ResponseWriter, r *http.Request) {
	var req domain.StationPatch
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	st, err := s.stations.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.stations.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("station_id", id).Msg("station deleted")
	w.WriteHeader(http.StatusNoContent)
}
