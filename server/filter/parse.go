package filter

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ParseDate reads a range bound. A bare date is midnight in loc; full RFC 3339 timestamps
// are also accepted.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t.In(loc), nil
}

// Update is a partial change to a Spec, as sent by the dashboard.
type Update struct {
	Preset *string `json:"preset,omitempty"`
	Custom *bool   `json:"custom,omitempty"`
	Start  *string `json:"start,omitempty"`
	End    *string `json:"end,omitempty"`
}

// Apply returns spec with the update applied. Choosing a preset leaves range mode; starting
// or editing a range enters it.
func (u Update) Apply(spec Spec, loc *time.Location) (Spec, error) {
	if u.Preset != nil {
		p, err := ParsePreset(*u.Preset)
		if err != nil {
			return spec, err
		}
		spec = spec.WithPreset(p)
	}

	if u.Custom != nil {
		if *u.Custom {
			if !spec.Custom {
				spec = spec.WithCustomRange()
			}
		} else if spec.Custom {
			spec = spec.WithPreset(PresetAll)
		}
	}

	if u.Start != nil || u.End != nil {
		start, end := spec.Start, spec.End
		var err error
		if u.Start != nil {
			if start, err = parseOptionalDate(*u.Start, loc); err != nil {
				return spec, err
			}
		}
		if u.End != nil {
			if end, err = parseOptionalDate(*u.End, loc); err != nil {
				return spec, err
			}
		}
		spec = spec.WithRange(start, end)
	}

	if spec.Start != nil && spec.End != nil && spec.Start.After(EndOfDay(*spec.End)) {
		return spec, fmt.Errorf("start date %s is after end date %s", spec.Start.Format(DateLayout), spec.End.Format(DateLayout))
	}
	return spec, nil
}

func parseOptionalDate(s string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDate(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseQuery builds a Spec from the preset, start and end query parameters. ok is false when
// none of them is present, so the caller can fall back to a stored filter.
func ParseQuery(values url.Values, loc *time.Location) (spec Spec, ok bool, err error) {
	var u Update
	if values.Has("preset") {
		p := values.Get("preset")
		u.Preset = &p
	}
	if values.Has("start") {
		s := values.Get("start")
		u.Start = &s
	}
	if values.Has("end") {
		e := values.Get("end")
		u.End = &e
	}
	if u.Preset == nil && u.Start == nil && u.End == nil {
		return Default(), false, nil
	}

	spec, err = u.Apply(Default(), loc)
	if err != nil {
		return Spec{}, true, err
	}
	return spec, true, nil
}
