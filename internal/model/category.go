package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument marks malformed input that must not be retried.
var ErrInvalidArgument = errors.New("invalid argument")

// Category is the fixed set of labels a message can be assigned.
type Category string

const (
	CategorySpam       Category = "spam"
	CategoryNewsletter Category = "newsletter"
	CategoryAds        Category = "ads"
	CategorySocial     Category = "social"
	CategoryPromotions Category = "promotions"
	CategoryImportant  Category = "important"
	CategoryUncertain  Category = "uncertain"
	CategoryPersonal   Category = "personal"
)

// AllCategories lists every category in declaration order.
var AllCategories = []Category{
	CategorySpam,
	CategoryNewsletter,
	CategoryAds,
	CategorySocial,
	CategoryPromotions,
	CategoryImportant,
	CategoryUncertain,
	CategoryPersonal,
}

// SubscriptionCategories are the categories considered for unsubscribe analysis.
var SubscriptionCategories = []Category{CategoryNewsletter, CategoryPromotions}

// ParseCategory converts a raw string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// BulkDeleteForbidden reports whether the category is protected from bulk deletion.
func (c Category) BulkDeleteForbidden() bool {
	return c == CategoryImportant || c == CategoryUncertain
}

// Kept reports whether messages in this category count toward "would keep"
// on the dashboard rather than "deletable".
func (c Category) Kept() bool {
	return c == CategoryImportant || c == CategoryUncertain || c == CategoryPersonal
}
