package habits

import (
	"fmt"

	"github.com/hurttlocker/starbound/internal/tags"
)

// Template is the Action-Conversion text for a habit suggestion.
type Template struct {
	FormattedName      string `json:"formatted_name"`
	Description        string `json:"description"`
	SuggestedFrequency string `json:"suggested_frequency"`
}

// TemplateSource supplies suggestion templates per canonical tag.
type TemplateSource interface {
	Template(tag string) (Template, bool)
}

// TemplateMap is a static TemplateSource.
type TemplateMap map[string]Template

func (m TemplateMap) Template(tag string) (Template, bool) {
	t, ok := m[tag]
	return t, ok
}

// Category is one of the trackable habit categories.
type Category struct {
	ID    int           `json:"id"`
	Key   string        `json:"key"`
	Label string        `json:"label"`
	Type  tags.Category `json:"type"`
}

// Categories lists the daily check-in categories. Keys are canonical tags.
var Categories = []Category{
	{ID: 1, Key: "hydration", Label: "Hydration", Type: tags.CategoryChoice},
	{ID: 2, Key: "nutrition", Label: "Nutrition", Type: tags.CategoryChoice},
	{ID: 3, Key: "focus", Label: "Focus", Type: tags.CategoryChoice},
	{ID: 4, Key: "sleep", Label: "Sleep", Type: tags.CategoryChoice},
	{ID: 5, Key: "movement", Label: "Movement", Type: tags.CategoryChoice},
	{ID: 6, Key: "energy", Label: "Energy", Type: tags.CategoryChoice},
	{ID: 7, Key: "mood", Label: "Mood", Type: tags.CategoryChoice},
	{ID: 8, Key: "outdoor", Label: "Outdoor", Type: tags.CategoryChoice},
	{ID: 9, Key: "safety", Label: "Safety", Type: tags.CategoryChance},
	{ID: 10, Key: "meals", Label: "Meals", Type: tags.CategoryChance},
	{ID: 11, Key: "sleep_issues", Label: "Sleep Issues", Type: tags.CategoryChance},
	{ID: 12, Key: "financial", Label: "Financial", Type: tags.CategoryChance},
}

var categoryCopy = map[string]struct{ desc, freq string }{
	"hydration":    {"Log a glass of water whenever you refill.", "daily"},
	"nutrition":    {"Note one mindful meal or snack choice each day.", "daily"},
	"focus":        {"Record one block of focused work.", "weekdays"},
	"sleep":        {"Track when you go to bed and how rested you feel.", "daily"},
	"movement":     {"Check in on any movement, even a short walk.", "daily"},
	"energy":       {"Rate your energy once in the afternoon.", "daily"},
	"mood":         {"Take a ten second mood check each evening.", "daily"},
	"outdoor":      {"Note time spent outside.", "3x per week"},
	"safety":       {"Flag moments you felt unsafe so patterns show up.", "as needed"},
	"meals":        {"Track skipped or irregular meals.", "daily"},
	"sleep_issues": {"Log nights with broken or short sleep.", "daily"},
	"financial":    {"Note money worries when they come up.", "weekly"},
}

// DefaultTemplates builds one template per habit category, named from the
// registry.
func DefaultTemplates(reg *tags.Registry) TemplateMap {
	m := TemplateMap{}
	for _, c := range Categories {
		copyText := categoryCopy[c.Key]
		name := c.Label
		if reg.Has(c.Key) {
			name = reg.DisplayName(c.Key)
		}
		m[c.Key] = Template{
			FormattedName:      fmt.Sprintf("%s %s", reg.Emoji(c.Key), name),
			Description:        copyText.desc,
			SuggestedFrequency: copyText.freq,
		}
	}
	return m
}

func genericTemplate(reg *tags.Registry, tag string) Template {
	name := reg.DisplayName(tag)
	return Template{
		FormattedName:      fmt.Sprintf("%s %s", reg.Emoji(tag), name),
		Description:        fmt.Sprintf("You've mentioned %s several times lately. Want to track it?", name),
		SuggestedFrequency: "daily",
	}
}
