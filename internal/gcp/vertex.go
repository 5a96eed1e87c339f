package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/reportflow/internal/llm"
)

// --- Chart Interpreter Model Prompts ---
const ChartSystemPrompt = "You are an economist reading charts from ITR Economics trends reports. You describe what a chart shows and place the series in the ITR business cycle. You must output your response as a single valid JSON object."
const ChartUserPrompt = `You will be provided with one chart image from page %d of an ITR Economics report.
Series: %s
Sector: %s
Chart type: %s
Text near the chart:
%s

Follow these rules precisely:
1.  Describe what the chart shows in one or two sentences.
2.  Classify the recent direction of the plotted line as "rising", "falling" or "stable".
3.  If the chart or nearby text places the series in an ITR business-cycle phase, give the phase letter: A (recovery), B (accelerating growth), C (slowing growth) or D (recession). Leave it empty if unclear.
4.  Rate your confidence as "high", "medium" or "low".
5.  Return a JSON object with exactly these keys: "description", "trend_direction", "current_phase", "confidence", "business_implications", "key_patterns" (an array of short strings).
Do not include any text before or after the JSON object.`

// --- Analysis Model Prompts ---
const AnalysisSystemPrompt = "You are a senior economic analyst summarizing ITR Economics trends reports for business leaders. You only use the facts you are given. When asked for JSON you output only valid JSON."
const PageSummarySystemPrompt = "You summarize single pages of ITR Economics trends reports in two to four plain sentences, focusing on direction, phase and outlook. You never use markdown."

// VertexClient holds the pre-configured generative models used by the engine.
type VertexClient struct {
	ChartModel    *genai.GenerativeModel
	AnalysisModel *genai.GenerativeModel
	TextModel     *genai.GenerativeModel
	SummaryModel  *genai.GenerativeModel
	ModelName     string
	baseClient    *genai.Client
}

func safetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
}

// NewVertexClient creates a client holding every model the engine calls.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// --- Configure the chart interpreter model ---
	chartModel := baseClient.GenerativeModel(modelName)
	chartModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ChartSystemPrompt)},
	}
	chartModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	chartModel.SafetySettings = safetySettings()

	// --- Configure the JSON analysis model ---
	analysisModel := baseClient.GenerativeModel(modelName)
	analysisModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AnalysisSystemPrompt)},
	}
	analysisModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	analysisModel.SafetySettings = safetySettings()

	// --- Configure the prose model ---
	textModel := baseClient.GenerativeModel(modelName)
	textModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AnalysisSystemPrompt)},
	}
	textModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	textModel.SafetySettings = safetySettings()

	// --- Configure the page summary model ---
	summaryModel := baseClient.GenerativeModel(modelName)
	summaryModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(PageSummarySystemPrompt)},
	}
	summaryModel.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.2),
		MaxOutputTokens: genai.Ptr[int32](512),
	}
	summaryModel.SafetySettings = safetySettings()

	return &VertexClient{
		ChartModel:    chartModel,
		AnalysisModel: analysisModel,
		TextModel:     textModel,
		SummaryModel:  summaryModel,
		ModelName:     modelName,
		baseClient:    baseClient,
	}, nil
}

// Generate implements llm.Generator.
func (c *VertexClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	model := c.TextModel
	switch {
	case req.Format == llm.FormatJSON:
		model = c.AnalysisModel
	case req.Task == llm.TaskPageSummary:
		model = c.SummaryModel
	}
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return responseText(resp)
}

// InterpretChart implements llm.Vision.
func (c *VertexClient) InterpretChart(ctx context.Context, req llm.ChartRequest) (string, error) {
	format := imageFormat(req.MIMEType)
	prompt := fmt.Sprintf(ChartUserPrompt, req.PageNumber, orUnknown(req.SeriesName), orUnknown(string(req.Sector)), orUnknown(req.ChartType), req.NearbyText)
	resp, err := c.ChartModel.GenerateContent(ctx, genai.ImageData(format, req.Image), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to interpret chart on page %d: %w", req.PageNumber, err)
	}
	return responseText(resp)
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", llm.ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	if llm.IsRefusal(text) {
		return "", fmt.Errorf("%w: %q", llm.ErrRefusal, truncate(text, 200))
	}
	return text, nil
}

// imageFormat maps a MIME type to the format name genai.ImageData expects.
func imageFormat(mimeType string) string {
	if f, ok := strings.CutPrefix(mimeType, "image/"); ok && f != "" {
		return f
	}
	return "png"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
