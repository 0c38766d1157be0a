package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailcleaner/internal/model"
)

func counts(pairs map[model.Category]int) map[model.Category]model.CategoryAggregate {
	out := map[model.Category]model.CategoryAggregate{}
	for c, n := range pairs {
		out[c] = model.CategoryAggregate{Category: c, Count: n}
	}
	return out
}

func TestMood(t *testing.T) {
	tests := []struct {
		name  string
		total int
		cats  map[model.Category]int
		want  string
	}{
		{"empty inbox", 0, nil, MoodZen},
		{"small inbox", 19, map[model.Category]int{model.CategoryImportant: 19}, MoodZen},
		{"important heavy", 100, map[model.Category]int{model.CategoryImportant: 31, model.CategorySpam: 60}, MoodOnFire},
		{"shopping heavy", 100, map[model.Category]int{model.CategoryPromotions: 20, model.CategoryAds: 20, model.CategorySpam: 11}, MoodShopaholic},
		{"exactly half shopping", 100, map[model.Category]int{model.CategoryAds: 50}, MoodBalanced},
		{"social", 100, map[model.Category]int{model.CategorySocial: 41}, MoodSocialite},
		{"newsletters", 100, map[model.Category]int{model.CategoryNewsletter: 45}, MoodNewsJunkie},
		{"personal", 100, map[model.Category]int{model.CategoryPersonal: 31}, MoodLoved},
		{"mixed", 100, map[model.Category]int{model.CategoryPersonal: 30, model.CategorySocial: 40}, MoodBalanced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mood(tt.total, counts(tt.cats)))
		})
	}
}
