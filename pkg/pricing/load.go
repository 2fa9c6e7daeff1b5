package pricing

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/tariffs.yaml
var defaultTariffs []byte

type tariffFile struct {
	Currency  string         `yaml:"currency"`
	Calendars []calendarSpec `yaml:"season_calendars"`
	Rules     []ruleSpec     `yaml:"rules"`
	Lessons   []lessonSpec   `yaml:"lessons"`
}

type calendarSpec struct {
	Resort  string `yaml:"resort"`
	Seasons []struct {
		Season Season      `yaml:"season"`
		Ranges []DateRange `yaml:"ranges"`
	} `yaml:"seasons"`
}

type ruleSpec struct {
	Resort   string              `yaml:"resort"`
	Item     string              `yaml:"item"`
	Kind     RuleKind            `yaml:"kind"`
	Days     int                 `yaml:"days"`
	Validity *DateRange          `yaml:"validity"`
	Amount   int                 `yaml:"amount"`
	Amounts  map[AgeCategory]int `yaml:"amounts"`
}

// lessonSpec prices a ski-school program per season. It is expanded into
// interval rules against the resort's season calendar at load time, so the
// resolver only ever deals with one rule shape.
type lessonSpec struct {
	Resort      string         `yaml:"resort"`
	ID          string         `yaml:"id"`
	PackageDays int            `yaml:"package_days"`
	Prices      map[Season]int `yaml:"prices"`
}

// LoadResolver reads a tariff file and builds a resolver from it.
func LoadResolver(path string) (*Resolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tariff file: %v", err)
	}
	return parseResolver(raw)
}

// NewDefaultResolver builds a resolver from the embedded tariff data.
func NewDefaultResolver() (*Resolver, error) {
	return parseResolver(defaultTariffs)
}

func parseResolver(raw []byte) (*Resolver, error) {
	var file tariffFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tariff data: %v", err)
	}

	calendars := make([]SeasonCalendar, 0, len(file.Calendars))
	for _, spec := range file.Calendars {
		cal := SeasonCalendar{Resort: spec.Resort}
		for _, s := range spec.Seasons {
			cal.Seasons = append(cal.Seasons, SeasonRanges{Season: s.Season, Ranges: s.Ranges})
		}
		calendars = append(calendars, cal)
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		rule, err := buildRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s/%s): %v", i, spec.Resort, spec.Item, err)
		}
		rules = append(rules, rule)
	}

	for _, lesson := range file.Lessons {
		expanded, err := expandLesson(lesson, calendars)
		if err != nil {
			return nil, fmt.Errorf("lesson %s: %v", lesson.ID, err)
		}
		rules = append(rules, expanded...)
	}

	return NewResolver(rules, calendars, file.Currency), nil
}

func buildRule(spec ruleSpec) (Rule, error) {
	if spec.Resort == "" || spec.Item == "" {
		return Rule{}, fmt.Errorf("resort and item are required")
	}
	if spec.Amount == 0 && len(spec.Amounts) == 0 {
		return Rule{}, fmt.Errorf("no amounts declared")
	}
	if spec.Amount != 0 && len(spec.Amounts) != 0 {
		return Rule{}, fmt.Errorf("amount and amounts are mutually exclusive")
	}
	switch spec.Kind {
	case KindDay, KindFlat:
		if spec.Days != 0 {
			return Rule{}, fmt.Errorf("days is only valid on package rules")
		}
	case KindPackage:
		if spec.Days < 2 {
			return Rule{}, fmt.Errorf("package needs a day count of at least 2")
		}
	default:
		return Rule{}, fmt.Errorf("unknown kind %q", spec.Kind)
	}
	if spec.Validity != nil && spec.Validity.End.Before(spec.Validity.Start) {
		return Rule{}, fmt.Errorf("validity ends before it starts")
	}
	return Rule{
		Resort:    spec.Resort,
		Item:      spec.Item,
		Kind:      spec.Kind,
		Days:      spec.Days,
		Validity:  spec.Validity,
		AnyAmount: spec.Amount,
		Amounts:   spec.Amounts,
	}, nil
}

// expandLesson turns a per-season priced program into one interval rule per
// calendar range. Ranges follow the calendar's declared order, so expansion is
// deterministic and the first-declared tie-break stays meaningful.
func expandLesson(lesson lessonSpec, calendars []SeasonCalendar) ([]Rule, error) {
	if lesson.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	var cal *SeasonCalendar
	for i := range calendars {
		if calendars[i].Resort == lesson.Resort {
			cal = &calendars[i]
			break
		}
	}
	if cal == nil {
		return nil, fmt.Errorf("no season calendar for resort %q", lesson.Resort)
	}

	kind := KindDay
	if lesson.PackageDays > 0 {
		kind = KindPackage
	}

	var rules []Rule
	for _, sr := range cal.Seasons {
		amount, priced := lesson.Prices[sr.Season]
		if !priced {
			continue
		}
		for _, rng := range sr.Ranges {
			validity := rng
			rules = append(rules, Rule{
				Resort:    lesson.Resort,
				Item:      lesson.ID,
				Kind:      kind,
				Days:      lesson.PackageDays,
				Validity:  &validity,
				Season:    sr.Season,
				AnyAmount: amount,
			})
		}
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no priced seasons match the calendar")
	}
	return rules, nil
}
