package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleKind describes how a poll interval string was interpreted.
type ScheduleKind int

const (
	ScheduleCron ScheduleKind = iota
	ScheduleInterval
)

// ParsedSchedule is a parsed poll interval.
//
// Supported forms:
//   - Interval duration: "10m", "600s"
//   - Interval HH:MM: "00:10" (10 minutes)
//   - Cron: "*/10 * * * *", "@every 10m", "@hourly"
//
// Optional prefixes "cron:" and "interval:"/"every:" force the interpretation.
type ParsedSchedule struct {
	Kind     ScheduleKind
	Cron     string
	Every    time.Duration
	Source   string // "cron" | "duration" | "hhmm"
	Schedule cron.Schedule
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule turns a poll interval string into a cron.Schedule.
// An empty string falls back to DefaultInterval.
func ParseSchedule(raw string) (ParsedSchedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = DefaultInterval
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	}

	// whitespace or a leading '@' means cron
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	p, err := parseInterval(s)
	if err != nil {
		return ParsedSchedule{}, fmt.Errorf(
			"invalid interval %q (use a duration like '10m', HH:MM like '00:10', or cron like '*/10 * * * *')", raw)
	}
	return p, nil
}

func parseCron(expr string) (ParsedSchedule, error) {
	if expr == "" {
		return ParsedSchedule{}, fmt.Errorf("cron schedule required")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return ParsedSchedule{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	p := ParsedSchedule{Kind: ScheduleCron, Cron: expr, Source: "cron", Schedule: sched}
	if every, ok := sched.(cron.ConstantDelaySchedule); ok {
		p.Every = every.Delay
	}
	return p, nil
}

func parseInterval(v string) (ParsedSchedule, error) {
	if v == "" {
		return ParsedSchedule{}, fmt.Errorf("interval required")
	}
	src := "duration"
	var (
		d   time.Duration
		err error
	)
	if reHHMM.MatchString(v) {
		src = "hhmm"
		d, err = parseHHMMDuration(v)
	} else {
		d, err = time.ParseDuration(v)
	}
	if err != nil {
		return ParsedSchedule{}, err
	}
	if d < time.Second {
		return ParsedSchedule{}, fmt.Errorf("interval must be >= 1s")
	}
	return ParsedSchedule{Kind: ScheduleInterval, Every: d, Source: src, Schedule: cron.Every(d)}, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}
