package sentiment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSentiment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Sentiment
	}{
		{"positive", "Had a great walk and feel calm", Positive},
		{"negative", "I barely did any exercise today, feeling guilty about snacking", Negative},
		{"case insensitive", "SO HAPPY and GRATEFUL", Positive},
		{"tie is neutral", "good morning, bad afternoon", Neutral},
		{"no hits", "went to the shop", Neutral},
		{"empty", "", Neutral},
		{"whole words only", "goodness badminton", Neutral},
		{"more negatives", "tired and stressed but happy", Negative},
		{"unicode only", "😀🎉✨", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectSentiment(tt.text)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
			// pure: same input, same output
			assert.Equal(t, got, DetectSentiment(tt.text))
		})
	}
}

func TestDetectSentiment_LongInput(t *testing.T) {
	text := strings.Repeat("happy ", 3000) + strings.Repeat("sad ", 3001)
	assert.Equal(t, Negative, DetectSentiment(text))
}

func TestParse(t *testing.T) {
	assert.Equal(t, Positive, Parse(" Positive "))
	assert.Equal(t, Negative, Parse("negative"))
	assert.Equal(t, Neutral, Parse("mixed"))
	assert.True(t, Negative.Polar())
	assert.False(t, Neutral.Polar())
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"I barely did any exercise today, feeling guilty about snacking", []string{"barely", "exercise", "guilty"}},
		{"Slept well!", []string{"slept", "well"}},
		{"a an to of", nil},
		{"", nil},
		{"Water, water, water. Then sleep.", []string{"water", "water", "water"}},
		{"Café visits: été", []string{"café", "visits", "été"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractKeywords(tt.text), "ExtractKeywords(%q)", tt.text)
	}
}

func TestByFrequency(t *testing.T) {
	got := ByFrequency{N: 2}.Keywords("sleep walk sleep water walk sleep")
	assert.Equal(t, []string{"sleep", "walk"}, got)

	got = ByFrequency{}.Keywords("alpha beta gamma delta")
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, got)
}

func TestKeywordStrategyInterface(t *testing.T) {
	var s KeywordStrategy = FirstN{N: 1}
	assert.Equal(t, []string{"morning"}, s.Keywords("Morning run with friends"))
}
