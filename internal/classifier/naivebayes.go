package classifier

import (
	"errors"
	"math"
	"sort"
)

const (
	minDocFreq  = 2
	maxFeatures = 5000
	nbAlpha     = 0.1
)

var errEmptyVocabulary = errors.New("no terms remain after pruning")

// Model is a TF-IDF vectorizer feeding a multinomial naive Bayes classifier.
// It is plain data so that it can be stored as JSON.
type Model struct {
	Vocabulary     map[string]int `json:"vocabulary"`
	IDF            []float64      `json:"idf"`
	Classes        []string       `json:"classes"`
	ClassLogPrior  []float64      `json:"class_log_prior"`
	FeatureLogProb [][]float64    `json:"feature_log_prob"`
}

// Fit trains a new model. texts must already be prepared.
func Fit(texts, labels []string) (*Model, error) {
	docs := make([][]string, len(texts))
	df := map[string]int{}
	tf := map[string]int{}
	for i, t := range texts {
		docs[i] = tokenize(t)
		seen := map[string]bool{}
		for _, term := range docs[i] {
			tf[term]++
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	var terms []string
	for term, n := range df {
		if n >= minDocFreq {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, errEmptyVocabulary
	}
	if len(terms) > maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	m := &Model{Vocabulary: make(map[string]int, len(terms)), IDF: make([]float64, len(terms))}
	n := float64(len(texts))
	for j, term := range terms {
		m.Vocabulary[term] = j
		m.IDF[j] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	classIndex := map[string]int{}
	for _, l := range labels {
		classIndex[l] = 0
	}
	for l := range classIndex {
		m.Classes = append(m.Classes, l)
	}
	sort.Strings(m.Classes)
	for i, c := range m.Classes {
		classIndex[c] = i
	}

	counts := make([]float64, len(m.Classes))
	featureCount := make([][]float64, len(m.Classes))
	for i := range featureCount {
		featureCount[i] = make([]float64, len(terms))
	}
	for i, doc := range docs {
		c := classIndex[labels[i]]
		counts[c]++
		for _, w := range m.vector(doc) {
			featureCount[c][w.index] += w.value
		}
	}

	m.ClassLogPrior = make([]float64, len(m.Classes))
	m.FeatureLogProb = make([][]float64, len(m.Classes))
	for c := range m.Classes {
		m.ClassLogPrior[c] = math.Log(counts[c] / n)
		total := 0.0
		for _, v := range featureCount[c] {
			total += v
		}
		denom := total + nbAlpha*float64(len(terms))
		m.FeatureLogProb[c] = make([]float64, len(terms))
		for j, v := range featureCount[c] {
			m.FeatureLogProb[c][j] = math.Log((v + nbAlpha) / denom)
		}
	}
	return m, nil
}

type weight struct {
	index int
	value float64
}

// vector returns the L2-normalised sparse TF-IDF weights of a document,
// ordered by feature index.
func (m *Model) vector(doc []string) []weight {
	counts := map[int]float64{}
	for _, term := range doc {
		if j, ok := m.Vocabulary[term]; ok {
			counts[j]++
		}
	}
	vec := make([]weight, 0, len(counts))
	for j, count := range counts {
		vec = append(vec, weight{index: j, value: count * m.IDF[j]})
	}
	sort.Slice(vec, func(a, b int) bool { return vec[a].index < vec[b].index })

	norm := 0.0
	for _, w := range vec {
		norm += w.value * w.value
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i].value /= norm
		}
	}
	return vec
}

// Predict returns the most probable class and its posterior probability.
// Equal probabilities resolve to the first class in sorted order.
func (m *Model) Predict(text string) (string, float64) {
	if len(m.Classes) == 0 {
		return "", 0
	}
	vec := m.vector(tokenize(text))
	jll := make([]float64, len(m.Classes))
	for c := range m.Classes {
		s := m.ClassLogPrior[c]
		for _, w := range vec {
			s += w.value * m.FeatureLogProb[c][w.index]
		}
		jll[c] = s
	}

	maxLL := jll[0]
	for _, v := range jll[1:] {
		if v > maxLL {
			maxLL = v
		}
	}
	sum := 0.0
	for _, v := range jll {
		sum += math.Exp(v - maxLL)
	}
	best := 0
	for c := range jll {
		if jll[c] > jll[best] {
			best = c
		}
	}
	return m.Classes[best], math.Exp(jll[best]-maxLL) / sum
}
