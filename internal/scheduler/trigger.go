package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"travelsync-service/internal/infrastructure/config"
)

// Trigger decides when a job fires next
type Trigger interface {
	Next(after time.Time) time.Time
	String() string
}

// Interval fires every fixed duration, measured from the previous firing
type Interval struct {
	Every time.Duration
}

// Next implements Trigger
func (i Interval) Next(after time.Time) time.Time {
	return after.Add(i.Every)
}

func (i Interval) String() string {
	return "every " + i.Every.String()
}

// Daily fires once a day at a wall-clock time in Location
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// ParseDaily parses an "HH:MM" wall-clock time
func ParseDaily(hhmm string, loc *time.Location) (Daily, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return Daily{}, fmt.Errorf("invalid daily time %q, want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Daily{}, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Daily{}, fmt.Errorf("invalid minute in %q", hhmm)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Daily{Hour: hour, Minute: minute, Location: loc}, nil
}

// Next implements Trigger. The result is strictly after the given time.
func (d Daily) Next(after time.Time) time.Time {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	local := after.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

func (d Daily) String() string {
	name := "UTC"
	if d.Location != nil {
		name = d.Location.String()
	}
	return fmt.Sprintf("daily %02d:%02d %s", d.Hour, d.Minute, name)
}

// FromConfig builds the trigger of a configured job
func FromConfig(job config.JobConfig, loc *time.Location) (Trigger, error) {
	if job.Daily != "" {
		daily, err := ParseDaily(job.Daily, loc)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name, err)
		}
		return daily, nil
	}
	every, err := time.ParseDuration(job.Interval)
	if err != nil {
		return nil, fmt.Errorf("job %s: invalid interval %q: %w", job.Name, job.Interval, err)
	}
	if every <= 0 {
		return nil, fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	return Interval{Every: every}, nil
}
