package domain

import (
	"context"
	"time"
	"unicode/utf8"
)

const (
	// MaxTrainNumberLen is the longest accepted train number, in characters.
	MaxTrainNumberLen = 10
	// MinPlatform and MaxPlatform bound the optional platform numbers.
	MinPlatform = 1
	MaxPlatform = 30
)

// Schedule is one departure/arrival pairing of a train between two stations.
type Schedule struct {
	ID                 string    `json:"id"`
	TrainNumber        string    `json:"trainNumber"`
	DepartureStationID string    `json:"departureStationId"`
	ArrivalStationID   string    `json:"arrivalStationId"`
	DepartureTime      time.Time `json:"departureTime"`
	ArrivalTime        time.Time `json:"arrivalTime"`
	DeparturePlatform  *int      `json:"departurePlatform,omitempty"`
	ArrivalPlatform    *int      `json:"arrivalPlatform,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	// Populated on reads.
	DepartureStation *Station `json:"departureStation,omitempty"`
	ArrivalStation   *Station `json:"arrivalStation,omitempty"`
}

// SchedulePatch carries the fields of a partial schedule update. Nil means unchanged.
type SchedulePatch struct {
	TrainNumber        *string    `json:"trainNumber,omitempty"`
	DepartureStationID *string    `json:"departureStationId,omitempty"`
	ArrivalStationID   *string    `json:"arrivalStationId,omitempty"`
	DepartureTime      *time.Time `json:"departureTime,omitempty"`
	ArrivalTime        *time.Time `json:"arrivalTime,omitempty"`
	DeparturePlatform  *int       `json:"departurePlatform,omitempty"`
	ArrivalPlatform    *int       `json:"arrivalPlatform,omitempty"`
}

// ScheduleFilter narrows ListSchedules. An empty StationID lists everything.
type ScheduleFilter struct {
	StationID string
}

// ScheduleRepository is the port for schedule persistence.
type ScheduleRepository interface {
	ListSchedules(ctx context.Context, f ScheduleFilter) ([]Schedule, error)
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	CreateSchedule(ctx context.Context, s Schedule) (*Schedule, error)
	UpdateSchedule(ctx context.Context, s Schedule) (*Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	CountSchedulesByStation(ctx context.Context, stationID string) (int, error)
}

// ValidateSchedule applies the schedule rules in order and returns the first
// failure as a *ValidationError, or nil when s is acceptable.
func ValidateSchedule(s Schedule) error {
	if s.DepartureStationID == s.ArrivalStationID {
		return Reject(ReasonSameStation, "arrivalStationId", "departure and arrival stations must differ")
	}
	if !s.DepartureTime.Before(s.ArrivalTime) {
		return Reject(ReasonBadOrder, "arrivalTime", "arrival must be after departure")
	}
	if n := utf8.RuneCountInString(s.TrainNumber); n == 0 || n > MaxTrainNumberLen {
		return Reject(ReasonOutOfRange, "trainNumber", "length must be between 1 and %d", MaxTrainNumberLen)
	}
	if err := checkPlatform("departurePlatform", s.DeparturePlatform); err != nil {
		return err
	}
	return checkPlatform("arrivalPlatform", s.ArrivalPlatform)
}

func checkPlatform(field string, p *int) error {
	if p == nil {
		return nil
	}
	if *p < MinPlatform || *p > MaxPlatform {
		return Reject(ReasonOutOfRange, field, "must be between %d and %d", MinPlatform, MaxPlatform)
	}
	return nil
}

// MergeSchedule applies p over existing so that the result can be validated
// as a whole. Fields absent from p keep their persisted values.
//
// The merge only sees the persisted record; two concurrent updates to the
// same schedule can each pass validation and still combine into an invalid
// pair.
func MergeSchedule(existing Schedule, p SchedulePatch) Schedule {
	out := existing
	out.DepartureStation, out.ArrivalStation = nil, nil
	if p.TrainNumber != nil {
		out.TrainNumber = *p.TrainNumber
	}
	if p.DepartureStationID != nil {
		out.DepartureStationID = *p.DepartureStationID
	}
	if p.ArrivalStationID != nil {
		out.ArrivalStationID = *p.ArrivalStationID
	}
	if p.DepartureTime != nil {
		out.DepartureTime = *p.DepartureTime
	}
	if p.ArrivalTime != nil {
		out.ArrivalTime = *p.ArrivalTime
	}
	if p.DeparturePlatform != nil {
		v := *p.DeparturePlatform
		out.DeparturePlatform = &v
	}
	if p.ArrivalPlatform != nil {
		v := *p.ArrivalPlatform
		out.ArrivalPlatform = &v
	}
	return out
}
