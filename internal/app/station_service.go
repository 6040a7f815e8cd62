package app

import (
	"context"
	"fmt"
	"strings"

	"trainschedule/internal/domain"
)

// SearchLimit caps the number of stations returned by Search.
const SearchLimit = 10

// DefaultStations is the catalogue loaded by SeedDefaults.
var DefaultStations = []domain.Station{
	{Name: "Київ-Пасажирський", City: "Київ"},
	{Name: "Харків-Пасажирський", City: "Харків"},
	{Name: "Львів", City: "Львів"},
	{Name: "Одеса-Головна", City: "Одеса"},
	{Name: "Дніпро-Головний", City: "Дніпро"},
	{Name: "Запоріжжя-1", City: "Запоріжжя"},
	{Name: "Вінниця", City: "Вінниця"},
	{Name: "Полтава-Київська", City: "Полтава"},
	{Name: "Суми", City: "Суми"},
	{Name: "Чернігів", City: "Чернігів"},
	{Name: "Івано-Франківськ", City: "Івано-Франківськ"},
	{Name: "Ужгород", City: "Ужгород"},
	{Name: "Тернопіль", City: "Тернопіль"},
	{Name: "Хмельницький", City: "Хмельницький"},
	{Name: "Житомир", City: "Житомир"},
	{Name: "Чернівці", City: "Чернівці"},
	{Name: "Рівне", City: "Рівне"},
	{Name: "Луцьк", City: "Луцьк"},
	{Name: "Черкаси", City: "Черкаси"},
	{Name: "Кропивницький", City: "Кропивницький"},
	{Name: "Херсон", City: "Херсон"},
	{Name: "Миколаїв", City: "Миколаїв"},
	{Name: "Ворохта", City: "Ворохта"},
	{Name: "Кременчук", City: "Кременчук"},
	{Name: "Костянтинівка", City: "Костянтинівка"},
	{Name: "Краматорськ", City: "Краматорськ"},
	{Name: "Покровськ", City: "Покровськ"},
	{Name: "Слов'янськ", City: "Слов'янськ"},
	{Name: "Бахмут", City: "Бахмут"},
	{Name: "Ясіня", City: "Ясіня"},
	{Name: "Рахів", City: "Рахів"},
}

// StationService encapsulates station use cases.
type StationService struct {
	stations  domain.StationRepository
	schedules domain.ScheduleRepository
}

// NewStationService creates a StationService. The schedule repository is
// consulted before deletes.
func NewStationService(stations domain.StationRepository, schedules domain.ScheduleRepository) *StationService {
	return &StationService{stations: stations, schedules: schedules}
}

// List returns all stations ordered by name.
func (s *StationService) List(ctx context.Context) ([]domain.Station, error) {
	return s.stations.ListStations(ctx)
}

// SearchByName returns up to SearchLimit stations whose name contains query,
// ignoring case. A blank query yields no results.
func (s *StationService) SearchByName(ctx context.Context, query string) ([]domain.Station, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Station{}, nil
	}
	return s.stations.SearchStations(ctx, query, SearchLimit)
}

// Get returns one station or domain.ErrNotFound.
func (s *StationService) Get(ctx context.Context, id string) (*domain.Station, error) {
	return s.stations.GetStation(ctx, id)
}

// Create validates and stores a station.
func (s *StationService) Create(ctx context.Context, st domain.Station) (*domain.Station, error) {
	st.Name, st.City = strings.TrimSpace(st.Name), strings.TrimSpace(st.City)
	if err := domain.ValidateStation(st); err != nil {
		return nil, err
	}
	return s.stations.CreateStation(ctx, st)
}

// Update applies a partial update to a station.
func (s *StationService) Update(ctx context.Context, id string, p domain.StationPatch) (*domain.Station, error) {
	existing, err := s.stations.GetStation(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := domain.MergeStation(*existing, p)
	merged.Name, merged.City = strings.TrimSpace(merged.Name), strings.TrimSpace(merged.City)
	if err := domain.ValidateStation(merged); err != nil {
		return nil, err
	}
	return s.stations.UpdateStation(ctx, merged)
}

// Delete removes a station. A station still used by a schedule is kept and a
// *domain.ConflictError is returned.
func (s *StationService) Delete(ctx context.Context, id string) error {
	if _, err := s.stations.GetStation(ctx, id); err != nil {
		return err
	}
	n, err := s.schedules.CountSchedulesByStation(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &domain.ConflictError{
			Reason:  domain.ReasonReferencedBySchedule,
			Message: fmt.Sprintf("station is used by %d schedule(s)", n),
			Count:   n,
		}
	}
	return s.stations.DeleteStation(ctx, id)
}

// SeedDefaults loads DefaultStations into an empty catalogue. It reports how
// many stations were inserted.
func (s *StationService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.stations.CountStations(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	added := 0
	for _, st := range DefaultStations {
		if _, err := s.stations.CreateStation(ctx, st); err != nil {
			return added, fmt.Errorf("seed %q: %w", st.Name, err)
		}
		added++
	}
	return added, nil
}
