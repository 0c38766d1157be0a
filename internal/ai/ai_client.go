package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"mailcleaner/internal/config"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
)

const (
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
)

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("empty response from language model")

// Client is the language-model collaborator. Callers treat Available as a
// capability check and fall back to heuristics when it reports false.
type Client interface {
	Available(ctx context.Context) bool
	ClassifyEmail(ctx context.Context, subject, sender, snippet string) (model.Category, float64, error)
	SummarizeEmail(ctx context.Context, subject, sender, body string) (string, error)
	SummarizeSender(ctx context.Context, sender string, subjects []string) (string, error)
	ReviewEmail(ctx context.Context, subject, sender, snippet string) (*Review, error)
	SuggestDeletions(ctx context.Context, msgs []*model.Message) ([]string, error)
	AdviseSubscription(ctx context.Context, c *model.SubscriptionCandidate) (string, error)
}

// Review is the structured answer for an uncertain message.
type Review struct {
	SuggestedCategory model.Category `json:"suggested_category"`
	Reasoning         string         `json:"reasoning"`
	Summary           string         `json:"summary"`
}

type aiClient struct {
	provider string
	model    string
	client   *openai.Client
	logger   *logger.Logger
}

// NewAIClient builds an OpenAI-compatible client for the configured provider.
// Ollama, DeepSeek and Gemini all expose the chat completions API.
func NewAIClient(cfg *config.Config, log *logger.Logger) Client {
	baseURL := cfg.AIBaseURL
	if baseURL == "" {
		baseURL = getBaseURL(cfg.AIProvider)
	}
	modelName := cfg.AIModel
	if modelName == "" {
		modelName = getModel(cfg.AIProvider)
	}
	key := cfg.AIKey
	if key == "" {
		key = cfg.AIProvider
	}

	clientCfg := openai.DefaultConfig(key)
	clientCfg.BaseURL = baseURL

	return &aiClient{
		provider: cfg.AIProvider,
		model:    modelName,
		client:   openai.NewClientWithConfig(clientCfg),
		logger:   log.With("provider", cfg.AIProvider),
	}
}

// getBaseURL returns the appropriate API base URL based on the provider
func getBaseURL(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderDeepSeek:
		return "https://api.deepseek.com"
	case ProviderGemini:
		return "https://generativelanguage.googleapis.com/v1beta/openai"
	default:
		return "http://127.0.0.1:11434/v1"
	}
}

// getModel returns the appropriate model based on the provider
func getModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return openai.GPT4oMini
	case ProviderDeepSeek:
		return "deepseek-chat"
	case ProviderGemini:
		return "gemini-2.0-flash-lite"
	default:
		return "qwen2.5:3b"
	}
}

func (a *aiClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := a.client.ListModels(ctx); err != nil {
		a.logger.Debug("language model unavailable:", err)
		return false
	}
	return true
}

func (a *aiClient) generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

const classifySystem = `You are an email classifier. Classify emails into exactly ONE category:
- spam: Unsolicited junk, scams, phishing
- newsletter: Regular updates, digests, news
- ads: Marketing, advertisements
- social: Social network notifications
- promotions: Upgrade offers, deals, discounts
- important: Receipts, confirmations, security alerts, work
- personal: Direct messages from real people
- uncertain: Cannot determine

Reply with ONLY the category name in lowercase, nothing else.`

func (a *aiClient) ClassifyEmail(ctx context.Context, subject, sender, snippet string) (model.Category, float64, error) {
	prompt := fmt.Sprintf("Email from: %s\nSubject: %s\nPreview: %s\n\nCategory:", sender, subject, truncate(snippet, 200))
	text, err := a.generate(ctx, classifySystem, prompt, 16)
	if err != nil {
		return "", 0, fmt.Errorf("failed to classify email: %w", err)
	}
	category, confidence := findBestCategoryMatch(text)
	a.logger.Debug("classified email as", category, confidence)
	return category, confidence, nil
}

func (a *aiClient) SummarizeEmail(ctx context.Context, subject, sender, body string) (string, error) {
	system := "You are an email summarizer. Summarize the email in one or two short sentences. Be concise."
	prompt := fmt.Sprintf("Email from: %s\nSubject: %s\n\n%s\n\nSummary:", sender, subject, truncate(body, 1500))
	summary, err := a.generate(ctx, system, prompt, 150)
	if err != nil {
		return "", fmt.Errorf("failed to summarize email: %w", err)
	}
	return summary, nil
}

func (a *aiClient) SummarizeSender(ctx context.Context, sender string, subjects []string) (string, error) {
	system := `You are an email summarizer. Analyze emails from a single sender and provide:
1. A brief summary of what this sender typically sends (1-2 sentences)
2. If any emails stand out as different or noteworthy, mention them

Be concise. Focus on actionable insights.`
	var list strings.Builder
	for _, s := range subjects {
		list.WriteString("- " + s + "\n")
	}
	prompt := fmt.Sprintf("Sender: %s\nTotal emails: %d\n\nSample subjects:\n%s\nSummary:", sender, len(subjects), list.String())
	summary, err := a.generate(ctx, system, prompt, 256)
	if err != nil {
		return "", fmt.Errorf("failed to summarize sender: %w", err)
	}
	return summary, nil
}

const reviewSystem = `You are an email analyst. For uncertain emails, provide:
1. SUGGESTED_CATEGORY: Your best guess (spam/newsletter/ads/social/promotions/important/personal)
2. REASONING: Why this email is hard to classify (1 sentence)
3. SUMMARY: Brief content summary (1 sentence)

Format your response exactly like:
SUGGESTED_CATEGORY: category_name
REASONING: explanation
SUMMARY: content summary`

func (a *aiClient) ReviewEmail(ctx context.Context, subject, sender, snippet string) (*Review, error) {
	prompt := fmt.Sprintf("Email from: %s\nSubject: %s\nPreview: %s\n\nAnalysis:", sender, subject, truncate(snippet, 300))
	text, err := a.generate(ctx, reviewSystem, prompt, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to review email: %w", err)
	}
	return parseReview(text, snippet), nil
}

const deletionSystem = `You are an intelligent email cleaner. Identify emails that are clearly SPAM, PROMOTIONAL JUNK, or USELESS NOTIFICATIONS that can be safely deleted.

Do NOT delete personal emails, order confirmations, receipts or work related emails.

Return ONLY a valid JSON array of strings containing the IDs of emails to delete.
Example: ["id_123", "id_456"]
If none, return [].`

func (a *aiClient) SuggestDeletions(ctx context.Context, msgs []*model.Message) ([]string, error) {
	if len(msgs) == 0 {
		return []string{}, nil
	}
	var list strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&list, "ID: %s\nFrom: %s\nSubject: %s\nPreview: %s\n---\n", m.ID, m.Sender, m.Subject, truncate(m.Snippet, 100))
	}
	text, err := a.generate(ctx, deletionSystem, "Review the following emails and identify deletions:\n\n"+list.String()+"\nJSON Response:", 512)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest deletions: %w", err)
	}
	return parseDeletionIDs(text)
}

func (a *aiClient) AdviseSubscription(ctx context.Context, c *model.SubscriptionCandidate) (string, error) {
	system := "You advise whether an email subscription is worth keeping. Reply with KEEP or UNSUBSCRIBE followed by a short reason."
	prompt := fmt.Sprintf("Sender: %s <%s>\nEmails received: %d\nUnread: %d\n\nRecommendation:", c.Sender, c.SenderEmail, c.Count, c.UnreadCount)
	text, err := a.generate(ctx, system, prompt, 64)
	if err != nil {
		return "", fmt.Errorf("failed to advise subscription: %w", err)
	}
	return text, nil
}

// findBestCategoryMatch maps a free-text answer onto a category. An exact
// answer scores 0.85, a contained category name 0.7, anything else is uncertain.
func findBestCategoryMatch(response string) (model.Category, float64) {
	answer := strings.ToLower(strings.TrimSpace(response))
	answer = strings.Trim(answer, ".\"'` ")
	if c, err := model.ParseCategory(answer); err == nil {
		return c, 0.85
	}
	for _, c := range model.AllCategories {
		if strings.Contains(answer, string(c)) {
			return c, 0.7
		}
	}
	return model.CategoryUncertain, 0.3
}

func parseReview(text, snippet string) *Review {
	review := &Review{
		SuggestedCategory: model.CategoryUncertain,
		Reasoning:         "Unable to analyze",
		Summary:           truncate(snippet, 100),
	}
	if review.Summary == "" {
		review.Summary = "No preview available"
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SUGGESTED_CATEGORY:"):
			if c, err := model.ParseCategory(strings.TrimPrefix(line, "SUGGESTED_CATEGORY:")); err == nil {
				review.SuggestedCategory = c
			}
		case strings.HasPrefix(line, "REASONING:"):
			review.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
		case strings.HasPrefix(line, "SUMMARY:"):
			review.Summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		}
	}
	return review
}

func parseDeletionIDs(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	var ids []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &ids); err != nil {
		return nil, fmt.Errorf("failed to parse deletion ids: %w", err)
	}
	return ids, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
