package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/repository"
	"go.uber.org/zap"
)

// Generator produces text from a system instruction and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

const ecoSystemInstruction = `You are EcoBot, an assistant that only answers eco-friendly and environmental questions.
Topics you can answer include sustainability, recycling, renewable energy, green living,
climate change, eco-education, wildlife protection and sustainable technologies.
If a question is unrelated to eco or environmental issues, politely reply:
"I can only answer questions about eco-friendly and environmental topics."
Keep answers concise, within 50 words.`

// FallbackAnswer is returned by AskEco when no generator answers.
const FallbackAnswer = "EcoBot is resting right now. Meanwhile: switch off unused lights and carry a reusable bottle."

// AssistantService writes daily summaries and answers eco questions.
type AssistantService struct {
	gen        Generator // optional
	users      repository.UserRepository
	activities *ActivityService
	timeout    time.Duration
	log        *zap.Logger
}

// NewAssistantService constructs the assistant; gen may be nil.
func NewAssistantService(gen Generator, users repository.UserRepository, activities *ActivityService, timeout time.Duration, log *zap.Logger) *AssistantService {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AssistantService{gen: gen, users: users, activities: activities, timeout: timeout, log: log}
}

// SummarizeDay tells the story of the user's activities on day's UTC date.
func (s *AssistantService) SummarizeDay(ctx context.Context, identifier string, day time.Time) (string, error) {
	u, err := resolveUser(ctx, s.users, identifier)
	if err != nil {
		return "", err
	}
	if day.IsZero() {
		day = time.Now()
	}
	acts, err := s.activities.FindToday(ctx, u.ID, day)
	if err != nil {
		return "", err
	}
	if len(acts) == 0 {
		return "", errs.Invalid("no activities on %s", day.UTC().Format(time.DateOnly))
	}

	parts := make([]string, 0, len(acts))
	var points int64
	var co2 float64
	for _, a := range acts {
		parts = append(parts, fmt.Sprintf("%s (%d pts, CO2 saved: %g kg)", a.Type, a.Points, a.CO2Saved))
		points += a.Points
		co2 += a.CO2Saved
	}
	prompt := fmt.Sprintf("Summarize these events for %s and make it into an eco-friendly story within 100 words: %s",
		u.Name, strings.Join(parts, ". "))

	fallback := fmt.Sprintf("%s completed %d eco activities today, earning %d points and saving %.1f kg of CO2. Keep it up!",
		u.Name, len(acts), points, co2)
	return s.generate(ctx, "", prompt, fallback), nil
}

// AskEco answers an environmental question.
func (s *AssistantService) AskEco(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errs.Invalid("question required")
	}
	return s.generate(ctx, ecoSystemInstruction, question, FallbackAnswer), nil
}

func (s *AssistantService) generate(ctx context.Context, system, prompt, fallback string) string {
	if s.gen == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.gen.Generate(ctx, system, prompt)
	if err != nil || strings.TrimSpace(out) == "" {
		s.log.Warn("assistant generation failed, using fallback", zap.Error(err))
		return fallback
	}
	return out
}
