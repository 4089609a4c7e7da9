package query

import (
	"strconv"
	"strings"
	"time"

	"mlmdq/internal/mlmd"
	"mlmdq/internal/store"
)

// Params is the textual filter surface shared by the CLI flags and the HTTP
// query string.
type Params struct {
	IDs        []int64
	Types      []string
	URI        string
	Name       string
	Context    int64
	Artifacts  []int64
	Executions []int64
	EventTypes []string

	// Times accept RFC 3339, a plain date, or milliseconds since epoch.
	CreateTimeStart string
	CreateTimeEnd   string
	UpdateTimeStart string
	UpdateTimeEnd   string

	OrderBy string
	Asc     bool
	Limit   int
	Offset  int
}

// Filter converts p into a store filter for kind.
func (p Params) Filter(kind store.Kind) (store.Filter, error) {
	f := store.Filter{
		IDs:          p.IDs,
		TypeNames:    splitList(p.Types),
		URI:          p.URI,
		Name:         p.Name,
		ContextID:    p.Context,
		ArtifactIDs:  p.Artifacts,
		ExecutionIDs: p.Executions,
		Asc:          p.Asc,
		Limit:        p.Limit,
		Offset:       p.Offset,
	}
	invalid := func(field string, err error) error {
		return &store.InvalidFilterError{Kind: kind, Field: field, Reason: err.Error()}
	}
	order, err := store.ParseOrderBy(p.OrderBy)
	if err != nil {
		return f, invalid("order_by", err)
	}
	f.OrderBy = order
	for _, s := range splitList(p.EventTypes) {
		t, err := mlmd.ParseEventType(s)
		if err != nil {
			return f, invalid("event_type", err)
		}
		f.EventTypes = append(f.EventTypes, t)
	}
	times := []struct {
		field string
		raw   string
		dst   *time.Time
	}{
		{"ctime_start", p.CreateTimeStart, &f.CreateTimeSince},
		{"ctime_end", p.CreateTimeEnd, &f.CreateTimeUntil},
		{"mtime_start", p.UpdateTimeStart, &f.UpdateTimeSince},
		{"mtime_end", p.UpdateTimeEnd, &f.UpdateTimeUntil},
	}
	for _, tm := range times {
		if strings.TrimSpace(tm.raw) == "" {
			continue
		}
		v, err := ParseTime(tm.raw)
		if err != nil {
			return f, invalid(tm.field, err)
		}
		*tm.dst = v
	}
	return f, nil
}

// splitList flattens repeated and comma separated values, dropping blanks.
func splitList(values []string) []string {
	var out []string
	for _, s := range values {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseTime accepts RFC 3339, YYYY-MM-DD (UTC midnight) or integer
// milliseconds since epoch.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return mlmd.FromMillis(ms), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: s, Message: ": want RFC 3339, YYYY-MM-DD or milliseconds since epoch"}
	}
	return t, nil
}
