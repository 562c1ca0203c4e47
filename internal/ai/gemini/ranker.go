package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/logger"
	"github.com/localhands/matchd/internal/matching"
	"github.com/localhands/matchd/internal/model"
)

//go:embed prompt.md
var promptTemplate string

const (
	// maxDescriptionChars bounds each candidate's description in the prompt.
	maxDescriptionChars = 500
	defaultMinScore     = 0.3
	defaultTopK         = 10
	defaultMaxLogLength = 200
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

type profileSource interface {
	Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

// Ranker is the model-backed Scorer. Any failure of the model call — network,
// non-success, unparseable output — lands on the lexical fallback, so callers
// never observe the model failing. An empty ranking from a healthy model is
// a valid answer and does not trigger the fallback.
type Ranker struct {
	generator contentGenerator
	fallback  matching.Scorer
	profiles  profileSource
	minScore  float64
	topK      int
	maxLogLen int
	logger    *zap.Logger
}

// NewRanker wires a model-backed ranker around a generator with the lexical
// scorer as fallback. profiles may be nil; poster attribution is then
// omitted from the prompt.
func NewRanker(generator contentGenerator, fallback matching.Scorer, profiles profileSource, minScore float64, maxLogLength int, log *zap.Logger) *Ranker {
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Ranker{
		generator: generator,
		fallback:  fallback,
		profiles:  profiles,
		minScore:  minScore,
		topK:      defaultTopK,
		maxLogLen: maxLogLength,
		logger:    log,
	}
}

type candidatePayload struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills,omitempty"`
	Rate        string   `json:"rate,omitempty"`
	Remote      bool     `json:"remote"`
	Location    string   `json:"location,omitempty"`
	Poster      string   `json:"poster,omitempty"`
}

type rankedItem struct {
	Index   int      `json:"index"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ScoreCandidates ranks the candidates with the model, degrading to the
// lexical fallback on any failure. It never returns an error of its own.
func (r *Ranker) ScoreCandidates(ctx context.Context, query string, searcher *model.Profile, candidates []model.Listing) ([]matching.MatchResult, error) {
	if len(candidates) == 0 {
		return r.degrade(ctx, "empty candidate set", nil, query, searcher, candidates)
	}

	prompt := r.buildPrompt(ctx, query, searcher, candidates)

	r.logger.Debug("ranking request",
		zap.String("model", r.generator.Model()),
		zap.Int("candidates", len(candidates)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return r.degrade(ctx, "model call failed", err, query, searcher, candidates)
	}

	r.logger.Debug("ranking response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, r.maxLogLen)),
	)

	items, err := parseRanking(raw)
	if err != nil {
		return r.degrade(ctx, "malformed model output", err, query, searcher, candidates)
	}

	results := make([]matching.MatchResult, 0, len(items))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(candidates) {
			// Malformed-output tolerance: a stray index drops the item,
			// not the whole ranking.
			r.logger.Debug("dropping out-of-range index", zap.Int("index", item.Index))
			continue
		}

		score := clamp(item.Score)
		if score <= r.minScore {
			continue
		}

		results = append(results, matching.MatchResult{
			Listing: candidates[item.Index],
			Score:   score,
			Reasons: item.Reasons,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Listing.CreatedAt.After(results[j].Listing.CreatedAt)
	})

	if len(results) > r.topK {
		results = results[:r.topK]
	}

	return results, nil
}

// degrade reports the degradation and answers with the lexical fallback.
func (r *Ranker) degrade(ctx context.Context, reason string, cause error, query string, searcher *model.Profile, candidates []model.Listing) ([]matching.MatchResult, error) {
	fields := []zap.Field{zap.String("reason", reason)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	r.logger.Warn("falling back to lexical scoring", fields...)

	return r.fallback.ScoreCandidates(ctx, query, searcher, candidates)
}

func (r *Ranker) buildPrompt(ctx context.Context, query string, searcher *model.Profile, candidates []model.Listing) string {
	payloads := make([]candidatePayload, 0, len(candidates))
	posters := make(map[uuid.UUID]string)
	for i, l := range candidates {
		payloads = append(payloads, candidatePayload{
			Index:       i,
			Title:       l.Title,
			Description: truncate(l.Description, maxDescriptionChars),
			Skills:      l.Skills,
			Rate:        rateLabel(l.RateMin, l.RateMax),
			Remote:      l.Remote,
			Location:    l.Location,
			Poster:      r.posterLabel(ctx, posters, l.OwnerID),
		})
	}

	candidatesJSON, _ := json.MarshalIndent(payloads, "", "  ")

	searcherJSON := []byte("{}")
	if searcher != nil {
		searcherJSON, _ = json.Marshal(map[string]string{
			"name":     searcher.Name,
			"headline": searcher.Headline,
		})
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{QUERY}}", query)
	prompt = strings.ReplaceAll(prompt, "{{SEARCHER_JSON}}", string(searcherJSON))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES_JSON}}", string(candidatesJSON))
	prompt = strings.ReplaceAll(prompt, "{{MIN_SCORE}}", fmt.Sprintf("%.1f", r.minScore))
	prompt = strings.ReplaceAll(prompt, "{{TOP_K}}", fmt.Sprintf("%d", r.topK))

	return prompt
}

func (r *Ranker) posterLabel(ctx context.Context, cache map[uuid.UUID]string, owner uuid.UUID) string {
	if r.profiles == nil {
		return ""
	}
	if label, ok := cache[owner]; ok {
		return label
	}

	label := ""
	if p, err := r.profiles.Profile(ctx, owner); err == nil && p != nil {
		label = strings.TrimSpace(p.Name)
		if p.Headline != "" {
			label = label + " (" + p.Headline + ")"
		}
	} else if err != nil {
		r.logger.Debug("poster profile lookup failed", zap.Error(err))
	}
	cache[owner] = label

	return label
}

func parseRanking(raw string) ([]rankedItem, error) {
	cleaned := extractJSON(raw)

	var items []rankedItem
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		return items, nil
	}

	// Some models insist on wrapping the array in an object.
	var wrapper struct {
		Results []rankedItem `json:"results"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
		return nil, fmt.Errorf("parse ranking response: %w", err)
	}
	if wrapper.Results == nil {
		return nil, fmt.Errorf("ranking response has no results array")
	}

	return wrapper.Results, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func rateLabel(min, max *int) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("$%d-%d/hr", *min, *max)
	case min != nil:
		return fmt.Sprintf("from $%d/hr", *min)
	case max != nil:
		return fmt.Sprintf("up to $%d/hr", *max)
	default:
		return ""
	}
}
