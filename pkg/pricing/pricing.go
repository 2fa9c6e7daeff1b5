package pricing

// AgeCategory is the rider age bracket tariffs price against.
type AgeCategory string

const (
	AgeAdult AgeCategory = "adult" // 26+
	AgeYouth AgeCategory = "youth" // 15-25
	AgeChild AgeCategory = "child" // 7-14
)

// Season is a named tariff period of the ski-school calendars.
type Season string

const (
	SeasonBase   Season = "base"
	SeasonPeak   Season = "peak"
	SeasonLow    Season = "low"
	SeasonHigh   Season = "high"
	SeasonWinter Season = "winter"
)

type RuleKind string

const (
	// KindDay prices one day inside a validity interval; multi-day requests
	// multiply the per-day amount.
	KindDay RuleKind = "day"
	// KindFlat is date-independent: seasonal and annual passes.
	KindFlat RuleKind = "flat"
	// KindPackage is a dedicated price for an exact day count. It is returned
	// verbatim, never computed from a day price.
	KindPackage RuleKind = "package"
)

// Rule is one priced tariff entry. Rules are static reference data, loaded at
// startup and immutable afterwards. Amounts are whole rubles; the source
// tariffs carry no kopek fractions.
type Rule struct {
	Resort   string
	Item     string // pass type or ski-school program id
	Kind     RuleKind
	Days     int        // package day count, 0 otherwise
	Validity *DateRange // nil = date-independent
	Season   Season     // set for rules expanded from a season calendar
	// AnyAmount prices every category (family passes, packages priced per
	// booking); Amounts prices categories individually and may be asymmetric.
	AnyAmount int
	Amounts   map[AgeCategory]int
}

// amountFor picks the price of a category within this rule. Missing category
// coverage means the tariff is not offered, not "same as adult".
func (r Rule) amountFor(age AgeCategory) (int, bool) {
	if len(r.Amounts) == 0 {
		if r.AnyAmount == 0 {
			return 0, false
		}
		return r.AnyAmount, true
	}
	amount, ok := r.Amounts[age]
	return amount, ok
}

func (r Rule) contains(d Date) bool {
	if r.Validity == nil {
		return true
	}
	if d.IsZero() {
		return false
	}
	return r.Validity.Contains(d)
}

// Request asks for the price of one tariff item. Days 0 and 1 both mean a
// single unit; larger values request a multi-day quote.
type Request struct {
	Resort string
	Item   string
	Date   Date
	Age    AgeCategory
	Days   int
}

// RuleRef identifies the rule a quote was resolved from.
type RuleRef struct {
	Resort   string
	Item     string
	Kind     RuleKind
	Validity *DateRange
	Season   Season
}

// Quote is a resolved price. PerDay is set only when the total was computed as
// a per-day amount times the day count.
type Quote struct {
	Amount   int
	Currency string
	PerDay   int
	Days     int
	Rule     RuleRef
}

// Resolver answers price lookups against an ordered rule set. Resolution is
// pure table lookup with zero I/O.
type Resolver struct {
	rules     []Rule
	calendars []SeasonCalendar
	currency  string
}

// SeasonCalendar maps date ranges to named seasons for one resort.
type SeasonCalendar struct {
	Resort  string
	Seasons []SeasonRanges
}

type SeasonRanges struct {
	Season Season
	Ranges []DateRange
}

func NewResolver(rules []Rule, calendars []SeasonCalendar, currency string) *Resolver {
	if currency == "" {
		currency = "RUB"
	}
	return &Resolver{rules: rules, calendars: calendars, currency: currency}
}

// SeasonOf names the tariff season of a date at a resort. Dates outside every
// declared range have no season; callers must not assume an adjacent one.
func (r *Resolver) SeasonOf(resort string, d Date) (Season, bool) {
	for _, cal := range r.calendars {
		if cal.Resort != resort {
			continue
		}
		for _, sr := range cal.Seasons {
			for _, rng := range sr.Ranges {
				if rng.Contains(d) {
					return sr.Season, true
				}
			}
		}
	}
	return "", false
}

// Resolve finds the applicable price. The second return is false when no rule
// covers the request: an out-of-season date, an exotic day count without a
// package, or a category the matched tariff does not offer. Absence is an
// answer, never an extrapolation from an adjacent period.
//
// Overlapping validity intervals are a data defect; when they occur the
// first-declared rule wins, consistently.
func (r *Resolver) Resolve(req Request) (Quote, bool) {
	days := req.Days
	if days <= 0 {
		days = 1
	}

	// Dedicated packages beat per-day arithmetic for their exact day count.
	if days > 1 {
		for _, rule := range r.rules {
			if rule.Resort != req.Resort || rule.Item != req.Item {
				continue
			}
			if rule.Kind != KindPackage || rule.Days != days || !rule.contains(req.Date) {
				continue
			}
			amount, ok := rule.amountFor(req.Age)
			if !ok {
				return Quote{}, false
			}
			return Quote{
				Amount:   amount,
				Currency: r.currency,
				Days:     days,
				Rule:     ref(rule),
			}, true
		}
	}

	for _, rule := range r.rules {
		if rule.Resort != req.Resort || rule.Item != req.Item {
			continue
		}
		switch rule.Kind {
		case KindFlat:
			amount, ok := rule.amountFor(req.Age)
			if !ok {
				return Quote{}, false
			}
			return Quote{
				Amount:   amount,
				Currency: r.currency,
				Days:     days,
				Rule:     ref(rule),
			}, true
		case KindDay:
			if !rule.contains(req.Date) {
				continue
			}
			// This is the matched interval. A category it does not price is
			// not offered in it.
			amount, ok := rule.amountFor(req.Age)
			if !ok {
				return Quote{}, false
			}
			return Quote{
				Amount:   amount * days,
				Currency: r.currency,
				PerDay:   amount,
				Days:     days,
				Rule:     ref(rule),
			}, true
		}
	}

	return Quote{}, false
}

func ref(rule Rule) RuleRef {
	return RuleRef{
		Resort:   rule.Resort,
		Item:     rule.Item,
		Kind:     rule.Kind,
		Validity: rule.Validity,
		Season:   rule.Season,
	}
}
