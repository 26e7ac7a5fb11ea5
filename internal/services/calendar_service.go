package services

import (
	"context"
	"sort"
	"time"

	"agency-crm/internal/models"
	"agency-crm/internal/timeutil"
)

const maxCalendarDays = 366

type MilestoneFeed interface {
	DueBetween(ctx context.Context, from, to string) ([]*models.CalendarEvent, error)
	ProjectDatesBetween(ctx context.Context, from, to string) ([]*models.CalendarEvent, error)
}

type TaskFeed interface {
	DueBetween(ctx context.Context, from, to string) ([]*models.CalendarEvent, error)
}

type SprintFeed interface {
	Overlapping(ctx context.Context, from, to string) ([]*models.CalendarEvent, error)
}

// CalendarService merges every dated entity into one feed
type CalendarService struct {
	Milestones MilestoneFeed
	Tasks      TaskFeed
	Sprints    SprintFeed
}

func NewCalendarService(milestones MilestoneFeed, tasks TaskFeed, sprints SprintFeed) *CalendarService {
	return &CalendarService{Milestones: milestones, Tasks: tasks, Sprints: sprints}
}

// Events returns the entries between from and to inclusive, both YYYY-MM-DD.
// Empty bounds default to the current month.
func (s *CalendarService) Events(ctx context.Context, from, to string) ([]*models.CalendarEvent, error) {
	start, end, err := calendarRange(from, to, timeutil.Now())
	if err != nil {
		return nil, err
	}
	f, t := start.Format(timeutil.DateLayout), end.Format(timeutil.DateLayout)

	var events []*models.CalendarEvent
	sources := []func(context.Context, string, string) ([]*models.CalendarEvent, error){
		s.Milestones.DueBetween,
		s.Milestones.ProjectDatesBetween,
		s.Tasks.DueBetween,
		s.Sprints.Overlapping,
	}
	for _, src := range sources {
		batch, err := src(ctx, f, t)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Title < b.Title
	})
	if events == nil {
		events = []*models.CalendarEvent{}
	}
	return events, nil
}

func calendarRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	now = now.In(timeutil.Local)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, timeutil.Local)

	start := monthStart
	if from != "" {
		d, err := timeutil.ParseDate(from)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("from must be YYYY-MM-DD")
		}
		start = d
	}
	end := monthStart.AddDate(0, 1, -1)
	if to != "" {
		d, err := timeutil.ParseDate(to)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("to must be YYYY-MM-DD")
		}
		end = d
	} else if from != "" {
		end = start.AddDate(0, 1, -1)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, invalid("to is before from")
	}
	if end.After(start.AddDate(0, 0, maxCalendarDays)) {
		return time.Time{}, time.Time{}, invalid("range cannot exceed %d days", maxCalendarDays)
	}
	return start, end, nil
}
