package classifier

import (
	"math"

	"mailcleaner/internal/model"
)

// Result is a category with its confidence in [0,1].
type Result struct {
	Category   model.Category `json:"category"`
	Confidence float64        `json:"confidence"`
}

// Signals are the independent observations computed once per message.
type Signals struct {
	Model          *Result
	Keywords       KeywordScores
	Domain         model.Category
	HasDomain      bool
	HasUnsubscribe bool
}

// Scorer returns a result when its rule applies.
type Scorer interface {
	Score(s *Signals) (Result, bool)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(s *Signals) (Result, bool)

func (f ScorerFunc) Score(s *Signals) (Result, bool) {
	return f(s)
}

// Policy applies scorers in order; the first that applies wins.
type Policy struct {
	Scorers  []Scorer
	Fallback Result
}

func (p Policy) Decide(s *Signals) Result {
	for _, sc := range p.Scorers {
		if r, ok := sc.Score(s); ok {
			return r
		}
	}
	return p.Fallback
}

// DefaultPolicy is the fixed precedence used for every message.
func DefaultPolicy() Policy {
	return Policy{
		Scorers: []Scorer{
			ModelScorer(0.7),
			StrongKeywordScorer(3),
			ScorerFunc(domainScore),
			ScorerFunc(unsubscribeScore),
			ModelScorer(0.4),
			ScorerFunc(weakKeywordScore),
		},
		Fallback: Result{Category: model.CategoryUncertain, Confidence: 0.2},
	}
}

// ModelScorer trusts the trained model above the given confidence.
func ModelScorer(threshold float64) Scorer {
	return ScorerFunc(func(s *Signals) (Result, bool) {
		if s.Model == nil || s.Model.Confidence <= threshold {
			return Result{}, false
		}
		return *s.Model, true
	})
}

// StrongKeywordScorer fires when the top category has at least minHits hits.
func StrongKeywordScorer(minHits int) Scorer {
	return ScorerFunc(func(s *Signals) (Result, bool) {
		c, hits := s.Keywords.Top()
		if hits < minHits {
			return Result{}, false
		}
		return Result{Category: c, Confidence: math.Min(0.5+0.1*float64(hits), 0.85)}, true
	})
}

func domainScore(s *Signals) (Result, bool) {
	if !s.HasDomain {
		return Result{}, false
	}
	return Result{Category: s.Domain, Confidence: 0.6}, true
}

func unsubscribeScore(s *Signals) (Result, bool) {
	if !s.HasUnsubscribe {
		return Result{}, false
	}
	newsletter, ads := s.Keywords[model.CategoryNewsletter], s.Keywords[model.CategoryAds]
	switch {
	case newsletter > ads:
		return Result{Category: model.CategoryNewsletter, Confidence: 0.5}, true
	case ads > 0:
		return Result{Category: model.CategoryAds, Confidence: 0.5}, true
	default:
		return Result{Category: model.CategoryPromotions, Confidence: 0.4}, true
	}
}

func weakKeywordScore(s *Signals) (Result, bool) {
	c, hits := s.Keywords.Top()
	if hits == 0 {
		return Result{}, false
	}
	return Result{Category: c, Confidence: 0.3}, true
}
