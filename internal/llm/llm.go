// Package llm defines the language and vision model capabilities the engine
// consumes, and the retry policy applied at every call boundary.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/models"
)

var (
	// ErrUnavailable marks a model call that failed after retries or timed out.
	ErrUnavailable = errors.New("language model unavailable")
	// ErrRefusal marks a response in which the model declined to answer.
	ErrRefusal = errors.New("model response indicates refusal")
	// ErrEmptyResponse marks a response without text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Task names the kind of generation requested, so that an implementation can pick
// a model configuration per task.
type Task string

const (
	TaskPageSummary      Task = "page_summary"
	TaskSectorSummary    Task = "sector_summary"
	TaskExecutiveSummary Task = "executive_summary"
	TaskThemes           Task = "themes"
	TaskRecommendations  Task = "recommendations"
	TaskSentiment        Task = "sentiment"
)

// Format is the expected shape of a response.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Request is a single prompt.
type Request struct {
	Task   Task
	Prompt string
	Format Format
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ChartRequest carries a chart image and the page context around it.
type ChartRequest struct {
	Image      []byte
	MIMEType   string
	ChartType  string
	PageNumber int
	SeriesName string
	Sector     models.Sector
	NearbyText string
}

// Vision interprets chart images. It returns the model's raw JSON answer.
type Vision interface {
	InterpretChart(ctx context.Context, req ChartRequest) (string, error)
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// IsRefusal reports whether a response reads as a refusal.
func IsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
