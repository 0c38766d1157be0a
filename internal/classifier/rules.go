package classifier

import (
	"strings"

	"mailcleaner/internal/model"
)

// keywordOrder is the scoring order. It also breaks ties when two categories
// have the same keyword score.
var keywordOrder = []model.Category{
	model.CategorySpam,
	model.CategoryNewsletter,
	model.CategoryAds,
	model.CategorySocial,
	model.CategoryPromotions,
	model.CategoryImportant,
}

var categoryKeywords = map[model.Category][]string{
	model.CategorySpam: {
		"urgent", "winner", "congratulations", "claim", "prize", "lottery",
		"free money", "act now", "limited time", "click here", "nigerian",
		"prince", "inheritance", "million dollars", "wire transfer", "bitcoin",
		"crypto giveaway", "double your", "guaranteed",
	},
	model.CategoryNewsletter: {
		"newsletter", "digest", "weekly", "monthly", "roundup", "update",
		"news", "bulletin", "edition", "issue", "subscribe", "unsubscribe",
		"view in browser", "email preferences",
	},
	model.CategoryAds: {
		"sale", "discount", "off", "deal", "promo", "coupon", "savings",
		"limited offer", "buy now", "shop now", "order now", "free shipping",
		"clearance", "flash sale", "exclusive offer", "best price",
	},
	model.CategorySocial: {
		"liked your", "commented on", "tagged you", "mentioned you",
		"friend request", "connection request", "followed you", "new follower",
		"linkedin", "facebook", "twitter", "instagram", "notification",
	},
	model.CategoryPromotions: {
		"upgrade", "premium", "pro plan", "special offer", "invitation",
		"exclusive", "vip", "member", "reward", "points", "cashback",
		"refer a friend", "loyalty", "trial", "beta",
	},
	model.CategoryImportant: {
		"invoice", "receipt", "payment", "confirmation", "booking",
		"appointment", "password reset", "security alert", "verify",
		"account", "order confirmation", "shipping", "delivery",
		"bank", "tax", "contract", "agreement", "urgent action required",
	},
}

type domainRule struct {
	category model.Category
	patterns []string
}

// Checked in order; the first rule with a matching pattern wins.
var domainRules = []domainRule{
	{model.CategorySocial, []string{
		"facebook.com", "linkedin.com", "twitter.com", "instagram.com",
		"pinterest.com", "tiktok.com", "snapchat.com", "reddit.com",
		"discord.com", "slack.com", "meetup.com",
	}},
	{model.CategoryAds, []string{
		"marketing", "promo", "deals", "offers", "newsletter", "mail.",
		"campaign", "mailchimp.com", "sendgrid.net", "amazonses.com",
	}},
	{model.CategoryNewsletter, []string{
		"substack.com", "mailchimp.com", "constantcontact.com",
		"medium.com", "ghost.io", "buttondown.email", "revue.co",
	}},
}

// KeywordScores counts keyword hits per category.
type KeywordScores map[model.Category]int

// ScoreKeywords counts, for each category, how many of its keywords occur as
// substrings of the prepared text.
func ScoreKeywords(text string) KeywordScores {
	scores := make(KeywordScores, len(keywordOrder))
	for _, c := range keywordOrder {
		n := 0
		for _, kw := range categoryKeywords[c] {
			if strings.Contains(text, kw) {
				n++
			}
		}
		scores[c] = n
	}
	return scores
}

// Top returns the highest-scoring category and its hit count.
func (s KeywordScores) Top() (model.Category, int) {
	best, hits := keywordOrder[0], s[keywordOrder[0]]
	for _, c := range keywordOrder[1:] {
		if s[c] > hits {
			best, hits = c, s[c]
		}
	}
	return best, hits
}

// DomainCategory matches the sender address against the domain lists.
func DomainCategory(senderEmail string) (model.Category, bool) {
	addr := strings.ToLower(senderEmail)
	for _, rule := range domainRules {
		for _, p := range rule.patterns {
			if strings.Contains(addr, p) {
				return rule.category, true
			}
		}
	}
	return "", false
}
