package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/amishk599/jobradar/internal/model"
)

// maxDescriptionRunes bounds the description sent to the model.
const maxDescriptionRunes = 4000

// Ensure LLMScorer implements model.Scorer.
var _ model.Scorer = (*LLMScorer)(nil)

// LLMScorer implements model.Scorer using an LLM.
type LLMScorer struct {
	provider LLMProvider
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewLLMScorer creates a scorer that rates jobs with LLM-generated scores.
func NewLLMScorer(provider LLMProvider, tmpl *template.Template, logger *slog.Logger) *LLMScorer {
	return &LLMScorer{
		provider: provider,
		tmpl:     tmpl,
		logger:   logger,
	}
}

type promptData struct {
	Title       string
	Company     string
	Location    string
	Remote      bool
	Salary      string
	Description string
	Profile     string
}

// Score rates rec against profile. Provider errors are returned unchanged so
// callers can detect model.ErrOracleUnavailable.
func (s *LLMScorer) Score(ctx context.Context, rec model.JobRecord, profile string) (model.ScoreBlock, error) {
	desc := rec.Description
	if r := []rune(desc); len(r) > maxDescriptionRunes {
		desc = string(r[:maxDescriptionRunes])
	}

	var promptBuf bytes.Buffer
	if err := s.tmpl.Execute(&promptBuf, promptData{
		Title:       rec.Title,
		Company:     rec.Company,
		Location:    rec.Location,
		Remote:      rec.Remote,
		Salary:      rec.SalaryText,
		Description: desc,
		Profile:     profile,
	}); err != nil {
		return model.ScoreBlock{}, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := s.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return model.ScoreBlock{}, fmt.Errorf("llm complete: %w", err)
	}

	block, err := parseScores(raw)
	if err != nil {
		return model.ScoreBlock{}, fmt.Errorf("parse scores: %w", err)
	}
	return block, nil
}

// rawScores is the JSON shape the prompt asks for.
type rawScores struct {
	Quality   float64  `json:"overall_quality_score"`
	Relevance float64  `json:"relevance_score"`
	RedFlags  []string `json:"red_flags"`
	Insights  string   `json:"insights"`
}

// parseScores deserializes the model output. JSON mode usually yields a bare
// object, but smaller models sometimes wrap it in prose, so the outermost
// braces are used as a fallback.
func parseScores(raw string) (model.ScoreBlock, error) {
	var rs rawScores
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return model.ScoreBlock{}, fmt.Errorf("unmarshal scores JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &rs); err != nil {
			return model.ScoreBlock{}, fmt.Errorf("unmarshal scores JSON: %w", err)
		}
	}

	block := model.ScoreBlock{
		Quality:   clamp(rs.Quality),
		Relevance: clamp(rs.Relevance),
		Insights:  strings.TrimSpace(rs.Insights),
	}
	for _, f := range rs.RedFlags {
		if f = strings.TrimSpace(f); f != "" {
			block.RedFlags = append(block.RedFlags, f)
		}
	}
	return block, nil
}

func clamp(v float64) float64 {
	return min(max(v, 0), 10)
}
