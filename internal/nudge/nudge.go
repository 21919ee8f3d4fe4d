// Package nudge holds the catalogue of small wellbeing actions and ranks
// them against the themes of a journal entry.
package nudge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/starbound/internal/bucket"
	"github.com/hurttlocker/starbound/internal/tags"
)

// ErrUnknownNudge is returned for ids missing from the catalogue.
var ErrUnknownNudge = errors.New("unknown nudge")

// Profile is the complexity profile a nudge is written for.
type Profile string

const (
	ProfileStable     Profile = "stable"
	ProfileTrying     Profile = "trying"
	ProfileOverloaded Profile = "overloaded"
	ProfileSurvival   Profile = "survival"
)

// Nudge is one suggested action. Duration and Energy are free text as
// authored; TimeBucket and EnergyLevel are their normalized forms.
type Nudge struct {
	ID                int                `json:"id" yaml:"id"`
	Theme             string             `json:"theme" yaml:"theme"`
	Title             string             `json:"title" yaml:"title"`
	Description       string             `json:"description" yaml:"description"`
	Duration          string             `json:"duration,omitempty" yaml:"duration"`
	Energy            string             `json:"energy_required" yaml:"energy_required"`
	ComplexityProfile Profile            `json:"complexity_profile" yaml:"complexity_profile"`
	TimeBucket        bucket.TimeBucket  `json:"time_bucket" yaml:"-"`
	EnergyLevel       bucket.EnergyLevel `json:"energy_level" yaml:"-"`
}

// Banked is a nudge the user saved for later.
type Banked struct {
	Nudge    Nudge     `json:"nudge"`
	BankedAt time.Time `json:"banked_at"`
}

// DefaultNudges is the built-in catalogue.
var DefaultNudges = []Nudge{
	{ID: 1, Theme: "hydration", Title: "Drink a glass of water", Description: "Small sips throughout the day add up.", Duration: "1 min", Energy: "low", ComplexityProfile: ProfileStable},
	{ID: 2, Theme: "movement", Title: "Take a 5-minute walk", Description: "A short walk can reset your energy.", Duration: "5 minutes", Energy: "low", ComplexityProfile: ProfileStable},
	{ID: 3, Theme: "sleep", Title: "Wind down 30 minutes earlier", Description: "A consistent bedtime improves sleep quality.", Duration: "30 minutes", Energy: "low", ComplexityProfile: ProfileTrying},
	{ID: 4, Theme: "nutrition", Title: "Add one vegetable to your next meal", Description: "Incremental changes to nutrition work best.", Duration: "5-10 mins", Energy: "low", ComplexityProfile: ProfileStable},
	{ID: 5, Theme: "mood", Title: "Check in with how you're feeling", Description: "Noticing your mood is the first step.", Duration: "1 minute", Energy: "low", ComplexityProfile: ProfileSurvival},
	{ID: 6, Theme: "focus", Title: "Try a 2-minute breathing exercise", Description: "Deep breaths calm the nervous system.", Duration: "2 minutes", Energy: "low", ComplexityProfile: ProfileOverloaded},
	{ID: 7, Theme: "energy", Title: "Step outside for natural light", Description: "Daylight helps regulate your energy.", Duration: "5 minutes", Energy: "low", ComplexityProfile: ProfileTrying},
	{ID: 8, Theme: "hydration", Title: "Keep a water bottle visible", Description: "Visual cues increase water intake.", Duration: "a moment", Energy: "low", ComplexityProfile: ProfileStable},
	{ID: 9, Theme: "movement", Title: "Stretch for two minutes", Description: "Loosen your shoulders and hips wherever you are.", Duration: "2 minutes", Energy: "very low", ComplexityProfile: ProfileOverloaded},
	{ID: 10, Theme: "nutrition", Title: "Swap one snack for fruit", Description: "A small swap, no rules attached.", Duration: "1-2 mins", Energy: "minimal", ComplexityProfile: ProfileStable},
	{ID: 11, Theme: "mindfulness", Title: "Three slow breaths", Description: "Breathe in for four, out for six.", Duration: "take three breaths", Energy: "minimal", ComplexityProfile: ProfileSurvival},
	{ID: 12, Theme: "sleep", Title: "Put your phone away at bedtime", Description: "Screens off helps your mind settle.", Duration: "1 min", Energy: "low", ComplexityProfile: ProfileTrying},
	{ID: 13, Theme: "outdoor", Title: "Sit outside for ten minutes", Description: "Fresh air and a change of scene.", Duration: "10 minutes", Energy: "low", ComplexityProfile: ProfileStable},
	{ID: 14, Theme: "movement", Title: "Dance to one song", Description: "Pick something upbeat and move.", Duration: "3 to 4 minutes", Energy: "moderate", ComplexityProfile: ProfileTrying},
	{ID: 15, Theme: "social", Title: "Text a friend", Description: "A quick hello keeps connections warm.", Duration: "2 minutes", Energy: "minimal", ComplexityProfile: ProfileStable},
	{ID: 16, Theme: "stress", Title: "Write down what's weighing on you", Description: "Getting it on paper makes it smaller.", Duration: "write it out", Energy: "low", ComplexityProfile: ProfileOverloaded},
}

// Catalog is an immutable, normalized set of nudges.
type Catalog struct {
	registry *tags.Registry
	nudges   []Nudge
	byID     map[int]int
}

// NewCatalog normalizes themes against registry and buckets durations and
// energy. Duplicate ids are rejected.
func NewCatalog(registry *tags.Registry, nudges []Nudge) (*Catalog, error) {
	c := &Catalog{registry: registry, byID: map[int]int{}}
	for _, n := range nudges {
		if _, dup := c.byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate nudge id %d", n.ID)
		}
		if key, ok := registry.Resolve(n.Theme); ok {
			n.Theme = key
		}
		desc := n.Duration
		if strings.TrimSpace(desc) == "" {
			desc = n.Title
		}
		n.TimeBucket = bucket.BucketizeTime(desc)
		n.EnergyLevel = bucket.NormalizeEnergy(n.Energy)
		if n.ComplexityProfile == "" {
			n.ComplexityProfile = ProfileStable
		}
		c.byID[n.ID] = len(c.nudges)
		c.nudges = append(c.nudges, n)
	}
	return c, nil
}

// DefaultCatalog is NewCatalog over DefaultNudges.
func DefaultCatalog(registry *tags.Registry) *Catalog {
	c, err := NewCatalog(registry, DefaultNudges)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every nudge in catalogue order.
func (c *Catalog) All() []Nudge {
	return append([]Nudge(nil), c.nudges...)
}

// Get looks up a nudge by id.
func (c *Catalog) Get(id int) (Nudge, error) {
	i, ok := c.byID[id]
	if !ok {
		return Nudge{}, fmt.Errorf("%w: %d", ErrUnknownNudge, id)
	}
	return c.nudges[i], nil
}

// Filter narrows the catalogue. Empty fields match everything.
type Filter struct {
	Theme   string
	Profile Profile
	Energy  bucket.EnergyLevel
}

// List returns the nudges matching f, in catalogue order.
func (c *Catalog) List(f Filter) []Nudge {
	theme := strings.TrimSpace(f.Theme)
	if key, ok := c.registry.Resolve(theme); ok {
		theme = key
	}
	var out []Nudge
	for _, n := range c.nudges {
		if theme != "" && n.Theme != theme {
			continue
		}
		if f.Profile != "" && n.ComplexityProfile != f.Profile {
			continue
		}
		if f.Energy != "" && n.EnergyLevel != f.Energy {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Recommend returns the first nudge for profile whose theme is not already
// filled in today's check-in. Unknown profiles use the whole catalogue.
func (c *Catalog) Recommend(filled map[string]string, profile Profile) (Nudge, bool) {
	candidates := c.List(Filter{Profile: profile})
	if len(candidates) == 0 {
		candidates = c.nudges
	}
	if len(candidates) == 0 {
		return Nudge{}, false
	}
	done := map[string]bool{}
	for k, v := range filled {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if key, ok := c.registry.Resolve(k); ok {
			k = key
		}
		done[k] = true
	}
	for _, n := range candidates {
		if !done[n.Theme] {
			return n, true
		}
	}
	return candidates[0], true
}

// DefaultLimit is the number of suggestions returned by Suggest.
const DefaultLimit = 3

// SuggestOptions constrain Suggest. Zero values disable a constraint.
type SuggestOptions struct {
	Limit   int
	MaxTime bucket.TimeBucket  // longest acceptable bucket
	Energy  bucket.EnergyLevel // energy available; nudges needing more are skipped
	Exclude []int              // nudge ids already banked or shown
}

// Suggestion is a ranked nudge.
type Suggestion struct {
	Nudge Nudge  `json:"nudge"`
	Score int    `json:"score"`
	Why   string `json:"why,omitempty"`
}

// Suggest ranks nudges against terms (themes, keywords or raw tag names).
// Each term is resolved to a canonical tag; a tag's weight is the number of
// terms that resolved to it. Matching themes are taken round-robin, heaviest
// first, so one theme cannot fill every slot. Remaining slots are filled
// with the easiest nudges that fit the constraints.
func (c *Catalog) Suggest(terms []string, opts SuggestOptions) []Suggestion {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	weight := map[string]int{}
	for _, t := range terms {
		if key, ok := c.registry.Resolve(t); ok {
			weight[key]++
		}
	}

	excluded := map[int]bool{}
	for _, id := range opts.Exclude {
		excluded[id] = true
	}

	perTheme := map[string][]Nudge{}
	var rest []Nudge
	for _, n := range c.nudges {
		if excluded[n.ID] || !fits(n, opts) {
			continue
		}
		if weight[n.Theme] > 0 {
			perTheme[n.Theme] = append(perTheme[n.Theme], n)
		} else {
			rest = append(rest, n)
		}
	}

	themes := make([]string, 0, len(perTheme))
	for th, ns := range perTheme {
		sortEasiest(ns)
		themes = append(themes, th)
	}
	sort.Slice(themes, func(i, j int) bool {
		if weight[themes[i]] != weight[themes[j]] {
			return weight[themes[i]] > weight[themes[j]]
		}
		return themes[i] < themes[j]
	})

	var out []Suggestion
	for round := 0; len(out) < limit; round++ {
		picked := false
		for _, th := range themes {
			if len(out) >= limit {
				break
			}
			if round < len(perTheme[th]) {
				out = append(out, Suggestion{
					Nudge: perTheme[th][round],
					Score: weight[th],
					Why:   fmt.Sprintf("matches %s", c.registry.DisplayName(th)),
				})
				picked = true
			}
		}
		if !picked {
			break
		}
	}

	sortEasiest(rest)
	for _, n := range rest {
		if len(out) >= limit {
			break
		}
		out = append(out, Suggestion{Nudge: n})
	}
	return out
}

func fits(n Nudge, opts SuggestOptions) bool {
	if opts.MaxTime != "" && opts.MaxTime.Index() >= 0 && n.TimeBucket.Index() > opts.MaxTime.Index() {
		return false
	}
	if opts.Energy != "" && n.EnergyLevel.Rank() > opts.Energy.Rank() {
		return false
	}
	return true
}

// sortEasiest orders by energy, then time bucket, then id.
func sortEasiest(ns []Nudge) {
	sort.SliceStable(ns, func(i, j int) bool {
		a, b := ns[i], ns[j]
		if a.EnergyLevel.Rank() != b.EnergyLevel.Rank() {
			return a.EnergyLevel.Rank() < b.EnergyLevel.Rank()
		}
		if a.TimeBucket.Index() != b.TimeBucket.Index() {
			return a.TimeBucket.Index() < b.TimeBucket.Index()
		}
		return a.ID < b.ID
	})
}
