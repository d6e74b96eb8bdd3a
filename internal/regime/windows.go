package regime

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const dateLayout = "2006-01-02"

// Overlap policies for crisis extension windows.
const (
	OverlapLastWins = "last_wins"
	OverlapError    = "error"
)

// Window is one crisis episode's core interval, inclusive of Start and
// exclusive of End.
type Window struct {
	Name  string
	Start time.Time
	End   time.Time
}

// PreStart returns the inclusive start of the pre-crisis extension.
func (w Window) PreStart(months int) time.Time {
	return w.Start.AddDate(0, -months, 0)
}

// PostEnd returns the exclusive end of the post-crisis extension.
func (w Window) PostEnd(months int) time.Time {
	return w.End.AddDate(0, months, 0)
}

// ParseWindow builds a window from 2006-01-02 date strings.
func ParseWindow(name, start, end string) (Window, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return Window{}, fmt.Errorf("window %s: bad start %q: %w", name, start, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return Window{}, fmt.Errorf("window %s: bad end %q: %w", name, end, err)
	}
	return Window{Name: name, Start: s, End: e}, nil
}

// WindowSet is the full regime definition: the crisis windows plus the
// extension lengths and the overlap policy for extensions.
type WindowSet struct {
	PreMonths     int
	PostMonths    int
	OverlapPolicy string
	Crises        []Window
}

// Validate checks the window set invariants. Every violation is a
// SegmentationError so callers can treat definition and application
// failures uniformly.
func (ws *WindowSet) Validate() error {
	if ws.PreMonths < 0 || ws.PostMonths < 0 {
		return &SegmentationError{Reason: "extension months must not be negative"}
	}
	switch ws.OverlapPolicy {
	case OverlapLastWins, OverlapError:
	default:
		return &SegmentationError{Reason: fmt.Sprintf("unknown overlap policy %q", ws.OverlapPolicy)}
	}
	if len(ws.Crises) == 0 {
		return &SegmentationError{Reason: "no crisis windows configured"}
	}

	seen := make(map[string]bool, len(ws.Crises))
	for _, w := range ws.Crises {
		if w.Name == "" {
			return &SegmentationError{Reason: "crisis window without a name"}
		}
		if seen[w.Name] {
			return &SegmentationError{Window: w.Name, Reason: "duplicate window name"}
		}
		seen[w.Name] = true
		if !w.Start.Before(w.End) {
			return &SegmentationError{Window: w.Name, Reason: "start must precede end"}
		}
	}

	for i := 1; i < len(ws.Crises); i++ {
		prev, cur := ws.Crises[i-1], ws.Crises[i]
		if !prev.Start.Before(cur.Start) {
			return &SegmentationError{Window: cur.Name, Reason: "windows must be strictly ordered by start"}
		}
		if cur.Start.Before(prev.End) {
			return &SegmentationError{
				Window: cur.Name,
				Reason: fmt.Sprintf("core window overlaps %s", prev.Name),
			}
		}
	}

	if ws.OverlapPolicy == OverlapError {
		for i := 1; i < len(ws.Crises); i++ {
			prev, cur := ws.Crises[i-1], ws.Crises[i]
			if cur.PreStart(ws.PreMonths).Before(prev.PostEnd(ws.PostMonths)) {
				return &SegmentationError{
					Window: cur.Name,
					Reason: fmt.Sprintf("extension overlaps %s and overlap policy is %q", prev.Name, OverlapError),
				}
			}
		}
	}

	return nil
}

// DefaultWindowSet returns the four major crises of the covered period
// with six-month extensions. End dates are exclusive, so each End is
// the first day after the episode.
func DefaultWindowSet() *WindowSet {
	return &WindowSet{
		PreMonths:     6,
		PostMonths:    6,
		OverlapPolicy: OverlapLastWins,
		Crises: []Window{
			{Name: "dotcom_bubble", Start: date(2000, 3, 1), End: date(2002, 11, 1)},
			{Name: "global_financial_crisis", Start: date(2007, 10, 1), End: date(2009, 4, 1)},
			{Name: "european_debt_crisis", Start: date(2011, 7, 1), End: date(2013, 1, 1)},
			{Name: "covid_crash", Start: date(2020, 2, 15), End: date(2020, 5, 1)},
		},
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// windowsFile is the on-disk schema for a standalone windows file.
// Month fields are pointers so an omitted value defaults to six months
// while an explicit zero stays zero.
type windowsFile struct {
	PreWindowMonths  *int   `yaml:"pre_window_months"`
	PostWindowMonths *int   `yaml:"post_window_months"`
	OverlapPolicy    string `yaml:"overlap_policy"`
	Crises           []struct {
		Name  string `yaml:"name"`
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"crises"`
}

// Loader handles loading and validation of crisis window definitions.
type Loader struct {
	set *WindowSet
}

// NewLoader creates a windows loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFromFile loads crisis windows from a YAML file.
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read windows file %s: %w", path, err)
	}

	var file windowsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse windows YAML: %w", err)
	}

	set := &WindowSet{
		PreMonths:     6,
		PostMonths:    6,
		OverlapPolicy: file.OverlapPolicy,
	}
	if file.PreWindowMonths != nil {
		set.PreMonths = *file.PreWindowMonths
	}
	if file.PostWindowMonths != nil {
		set.PostMonths = *file.PostWindowMonths
	}
	if set.OverlapPolicy == "" {
		set.OverlapPolicy = OverlapLastWins
	}
	for _, c := range file.Crises {
		w, err := ParseWindow(c.Name, c.Start, c.End)
		if err != nil {
			return err
		}
		set.Crises = append(set.Crises, w)
	}

	if err := set.Validate(); err != nil {
		return fmt.Errorf("windows validation failed: %w", err)
	}

	l.set = set
	return nil
}

// LoadDefault loads the built-in crisis windows.
func (l *Loader) LoadDefault() error {
	set := DefaultWindowSet()
	if err := set.Validate(); err != nil {
		return fmt.Errorf("default windows validation failed: %w", err)
	}
	l.set = set
	return nil
}

// WindowSet returns the loaded window set.
func (l *Loader) WindowSet() (*WindowSet, error) {
	if l.set == nil {
		return nil, fmt.Errorf("windows not loaded - call LoadFromFile or LoadDefault first")
	}
	return l.set, nil
}
