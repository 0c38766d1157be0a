package aggregate

import "mailcleaner/internal/model"

const (
	MoodZen        = "Zen"
	MoodOnFire     = "On Fire"
	MoodShopaholic = "Shopaholic"
	MoodSocialite  = "Socialite"
	MoodNewsJunkie = "News Junkie"
	MoodLoved      = "Loved"
	MoodBalanced   = "Balanced"
)

// Mood picks the inbox mood from category ratios. Rules are checked in order
// and the first match wins.
func Mood(total int, categories map[model.Category]model.CategoryAggregate) string {
	if total < 20 {
		return MoodZen
	}
	ratio := func(cs ...model.Category) float64 {
		n := 0
		for _, c := range cs {
			n += categories[c].Count
		}
		return float64(n) / float64(total)
	}
	switch {
	case ratio(model.CategoryImportant) > 0.3:
		return MoodOnFire
	case ratio(model.CategoryPromotions, model.CategoryAds, model.CategorySpam) > 0.5:
		return MoodShopaholic
	case ratio(model.CategorySocial) > 0.4:
		return MoodSocialite
	case ratio(model.CategoryNewsletter) > 0.4:
		return MoodNewsJunkie
	case ratio(model.CategoryPersonal) > 0.3:
		return MoodLoved
	default:
		return MoodBalanced
	}
}
