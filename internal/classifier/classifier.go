package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

// MinTrainingExamples is the smallest labelled set Train accepts.
const MinTrainingExamples = 10

// ErrNotEnoughData reports that training was refused. The previous model is
// kept.
var ErrNotEnoughData = errors.New("not enough training data")

// Sample is one prepared text with its category label.
type Sample struct {
	Text  string
	Label string
}

// Classifier assigns a category to a message using the trained model plus
// keyword, domain and unsubscribe rules.
type Classifier struct {
	mu       sync.RWMutex
	model    *Model
	policy   Policy
	settings repository.SettingsRepository
	logger   *logger.Logger
}

// New returns an untrained classifier. settings may be nil, in which case
// trained models are not persisted.
func New(settings repository.SettingsRepository, log *logger.Logger) *Classifier {
	return &Classifier{
		policy:   DefaultPolicy(),
		settings: settings,
		logger:   log,
	}
}

// Load restores the persisted model, training on the built-in examples when
// none is stored.
func (c *Classifier) Load(ctx context.Context) error {
	if c.settings != nil {
		raw, err := c.settings.GetSetting(ctx, repository.SettingClassifierModel)
		switch {
		case err == nil:
			var m Model
			if err := json.Unmarshal([]byte(raw), &m); err == nil && len(m.Classes) > 0 {
				c.setModel(&m)
				c.logger.Info("loaded classifier model with", len(m.Classes), "classes and", len(m.Vocabulary), "features")
				return nil
			}
			c.logger.Warn("stored classifier model is unreadable, bootstrapping")
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("failed to load classifier model: %w", err)
		}
	}
	_, err := c.Train(ctx, bootstrapSamples())
	return err
}

func (c *Classifier) setModel(m *Model) {
	c.mu.Lock()
	c.model = m
	c.mu.Unlock()
}

// Trained reports whether a model is loaded.
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// Signals computes every observation the policy looks at.
func (c *Classifier) Signals(m *model.Message) *Signals {
	text := PrepareText(m)
	s := &Signals{
		Keywords:       ScoreKeywords(text),
		HasUnsubscribe: m.HasUnsubscribe(),
	}
	s.Domain, s.HasDomain = DomainCategory(m.SenderEmail)

	c.mu.RLock()
	mdl := c.model
	c.mu.RUnlock()
	if mdl != nil {
		if label, p := mdl.Predict(text); label != "" {
			s.Model = &Result{Category: model.Category(label), Confidence: p}
		}
	}
	return s
}

// Classify returns the category and confidence for m without modifying it.
func (c *Classifier) Classify(m *model.Message) Result {
	return c.policy.Decide(c.Signals(m))
}

// ClassifyBatch classifies each message and records the result on it.
func (c *Classifier) ClassifyBatch(msgs []*model.Message) []Result {
	results := make([]Result, len(msgs))
	for i, m := range msgs {
		r := c.Classify(m)
		m.SetCategory(r.Category, r.Confidence)
		results[i] = r
	}
	return results
}

// Train fits a new model from samples whose label is a known category and
// swaps it in. It returns the number of samples used.
func (c *Classifier) Train(ctx context.Context, samples []Sample) (int, error) {
	if len(samples) < MinTrainingExamples {
		return 0, fmt.Errorf("%w: %d samples, need %d", ErrNotEnoughData, len(samples), MinTrainingExamples)
	}
	texts := make([]string, 0, len(samples))
	labels := make([]string, 0, len(samples))
	for _, s := range samples {
		if !model.Category(s.Label).Valid() {
			continue
		}
		texts = append(texts, normalize(s.Text))
		labels = append(labels, s.Label)
	}
	if len(texts) < MinTrainingExamples {
		return 0, fmt.Errorf("%w: %d valid samples, need %d", ErrNotEnoughData, len(texts), MinTrainingExamples)
	}

	m, err := Fit(texts, labels)
	if err != nil {
		return 0, fmt.Errorf("failed to train classifier: %w", err)
	}
	if c.settings != nil {
		raw, err := json.Marshal(m)
		if err != nil {
			return 0, fmt.Errorf("failed to encode classifier model: %w", err)
		}
		if err := c.settings.SetSetting(ctx, repository.SettingClassifierModel, string(raw)); err != nil {
			return 0, fmt.Errorf("failed to save classifier model: %w", err)
		}
	}
	c.setModel(m)
	c.logger.Info("classifier trained on", len(texts), "samples")
	return len(texts), nil
}

// TrainFromExamples maps user feedback onto categories and trains on it.
// "keep" becomes important, "delete" becomes spam and unknown labels are
// skipped.
func (c *Classifier) TrainFromExamples(ctx context.Context, examples []model.TrainingExample) (int, error) {
	samples := make([]Sample, 0, len(examples))
	for _, ex := range examples {
		label := ex.Label
		switch label {
		case model.UserActionKeep:
			label = model.CategoryImportant.String()
		case model.UserActionDelete:
			label = model.CategorySpam.String()
		default:
			if !model.Category(label).Valid() {
				continue
			}
		}
		samples = append(samples, Sample{Text: exampleText(ex), Label: label})
	}
	return c.Train(ctx, samples)
}
