package classifier

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

type memorySettings map[string]string

func (m memorySettings) GetSetting(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (m memorySettings) SetSetting(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func newMessage(sender, subject, snippet string) *model.Message {
	m := model.NewMessage("id-1", "", "", sender, subject, snippet, time.Unix(0, 0))
	m.BodyPreview = ""
	return m
}

func quiet() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

func TestClassifyDecisionOrder(t *testing.T) {
	c := New(nil, quiet())

	tests := []struct {
		name       string
		msg        *model.Message
		unsub      bool
		category   model.Category
		confidence float64
	}{
		{"nothing matches", newMessage("bob@host.io", "hello there", "see you"), false, model.CategoryUncertain, 0.2},
		{"strong keywords", newMessage("a@b.io", "Weekly newsletter digest", ""), false, model.CategoryNewsletter, 0.85},
		{"domain", newMessage("noreply@linkedin.com", "hi", ""), false, model.CategorySocial, 0.6},
		{"unsubscribe without keywords", newMessage("x@y.io", "hello", ""), true, model.CategoryPromotions, 0.4},
		{"unsubscribe with ads keyword", newMessage("x@y.io", "a sale today", ""), true, model.CategoryAds, 0.5},
		{"weak keyword", newMessage("x@y.io", "your invoice", ""), false, model.CategoryImportant, 0.3},
		{"tie goes to earlier category", newMessage("x@y.io", "prize invoice", ""), false, model.CategorySpam, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.unsub {
				tt.msg.UnsubscribeLink = "https://y.io/unsub"
			}
			r := c.Classify(tt.msg)
			assert.Equal(t, tt.category, r.Category)
			assert.InDelta(t, tt.confidence, r.Confidence, 1e-9)
			assert.Nil(t, tt.msg.Category)
		})
	}
}

func TestPolicyThresholdsAreStrict(t *testing.T) {
	p := DefaultPolicy()

	atThreshold := &Signals{Model: &Result{Category: model.CategorySpam, Confidence: 0.7}, Keywords: KeywordScores{}}
	r := p.Decide(atThreshold)
	assert.Equal(t, model.CategorySpam, r.Category)
	assert.Equal(t, 0.7, r.Confidence, "falls through to the low-confidence model rule")

	low := &Signals{Model: &Result{Category: model.CategorySpam, Confidence: 0.4}, Keywords: KeywordScores{}}
	assert.Equal(t, model.CategoryUncertain, p.Decide(low).Category)

	strongBeatsDomain := &Signals{
		Model:     &Result{Category: model.CategorySocial, Confidence: 0.5},
		Keywords:  KeywordScores{model.CategoryAds: 3},
		Domain:    model.CategorySocial,
		HasDomain: true,
	}
	r = p.Decide(strongBeatsDomain)
	assert.Equal(t, model.CategoryAds, r.Category)
	assert.InDelta(t, 0.8, r.Confidence, 1e-9)
}

func TestStrongKeywordConfidenceIsCapped(t *testing.T) {
	r, ok := StrongKeywordScorer(3).Score(&Signals{Keywords: KeywordScores{model.CategorySpam: 7}})
	require.True(t, ok)
	assert.Equal(t, 0.85, r.Confidence)
}

func TestClassifyBatchWritesResults(t *testing.T) {
	c := New(nil, quiet())
	msgs := []*model.Message{
		newMessage("bob@host.io", "hello there", "see you"),
		newMessage("noreply@facebook.com", "hi", ""),
	}
	results := c.ClassifyBatch(msgs)
	require.Len(t, results, 2)
	assert.Equal(t, model.CategoryUncertain, *msgs[0].Category)
	assert.Equal(t, model.CategorySocial, *msgs[1].Category)
	assert.Equal(t, 0.6, msgs[1].CategoryConfidence)
}

func TestLoadBootstrapsAndPersists(t *testing.T) {
	ctx := context.Background()
	settings := memorySettings{}
	c := New(settings, quiet())
	require.NoError(t, c.Load(ctx))
	assert.True(t, c.Trained())
	assert.Contains(t, settings, repository.SettingClassifierModel)

	msg := newMessage("alerts@win.io", "winner lottery prize congratulations claim", "")
	first := c.Classify(msg)
	assert.Equal(t, model.CategorySpam, first.Category)
	assert.Equal(t, first, c.Classify(msg))

	restored := New(settings, quiet())
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, first, restored.Classify(msg))
}

func TestTrainRefusesSmallSets(t *testing.T) {
	ctx := context.Background()
	c := New(nil, quiet())

	samples := bootstrapSamples()[:9]
	_, err := c.Train(ctx, samples)
	assert.ErrorIs(t, err, ErrNotEnoughData)
	assert.False(t, c.Trained())

	mixed := bootstrapSamples()[:8]
	for i := 0; i < 4; i++ {
		mixed = append(mixed, Sample{Text: "whatever text", Label: "not-a-category"})
	}
	_, err = c.Train(ctx, mixed)
	assert.ErrorIs(t, err, ErrNotEnoughData)
	assert.False(t, c.Trained())
}

func TestTrainFailureKeepsPreviousModel(t *testing.T) {
	ctx := context.Background()
	c := New(nil, quiet())
	_, err := c.Train(ctx, bootstrapSamples())
	require.NoError(t, err)

	var unique []Sample
	for i := 0; i < 10; i++ {
		unique = append(unique, Sample{Text: fmt.Sprintf("word%d", i), Label: "spam"})
	}
	_, err = c.Train(ctx, unique)
	assert.Error(t, err)
	assert.True(t, c.Trained())
}

func TestTrainFromExamplesMapsDecisions(t *testing.T) {
	ctx := context.Background()
	c := New(nil, quiet())

	var examples []model.TrainingExample
	for i := 0; i < 6; i++ {
		examples = append(examples, model.TrainingExample{SenderEmail: "boss@work.com", Subject: "quarterly report review", Label: "keep"})
		examples = append(examples, model.TrainingExample{SenderEmail: "junk@spam.biz", Subject: "cheap pills offer", Label: "delete"})
	}
	examples = append(examples, model.TrainingExample{Subject: "ignored", Label: "maybe"})

	n, err := c.TrainFromExamples(ctx, examples)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	c.mu.RLock()
	classes := c.model.Classes
	c.mu.RUnlock()
	assert.Equal(t, []string{"important", "spam"}, classes)

	r := c.Classify(newMessage("boss@work.com", "quarterly report review", ""))
	assert.Equal(t, model.CategoryImportant, r.Category)
	assert.Greater(t, r.Confidence, 0.7)
}

func TestPrepareTextAndTokenize(t *testing.T) {
	m := newMessage("News@Site.COM", "Hello,   World!!", "50% off")
	assert.Equal(t, "news site com hello world 50 off", PrepareText(m))
	assert.Equal(t, []string{"weekly", "digest", "weekly digest"}, tokenize("the weekly digest"))
}

func TestScoreKeywordsAndDomain(t *testing.T) {
	scores := ScoreKeywords("flash sale buy now")
	assert.Equal(t, 3, scores[model.CategoryAds])
	top, hits := scores.Top()
	assert.Equal(t, model.CategoryAds, top)
	assert.Equal(t, 3, hits)

	c, ok := DomainCategory("digest@mailchimp.com")
	require.True(t, ok)
	assert.Equal(t, model.CategoryAds, c)
	_, ok = DomainCategory("friend@example.org")
	assert.False(t, ok)
}
