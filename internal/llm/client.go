// Package llm produces the narrative case analysis with an OpenAI chat model.
package llm

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

//go:embed system_prompt.txt
var systemPrompt string

// SystemPrompt returns the analyst persona and regulatory catalogue sent with every request.
func SystemPrompt() string {
	return systemPrompt
}

// CapacityMessage is returned instead of an analysis when the case does not fit the model context.
const CapacityMessage = "Opa! Não consigo tankar este caso, pois há muitas transações. Chame um analista humano - ou reptiliano - para resolver"

const (
	scoreMarker    = "Risco de Lavagem de Dinheiro:"
	decisionHeader = "\n\nDecisão Final do 03mini:\n"
)

const scorePrompt = "Com base na análise a seguir, classifique o risco de lavagem de dinheiro em uma escala de 1 a 10, " +
	"onde 1-5 é baixo risco (normalização do caso), 6 é médio risco (normalização com monitoramento contínuo), " +
	"7-8 é risco moderado (Suspicious Mid - requer validação adicional), 9 é alto risco (Suspicious High - requer validação adicional urgente), e 10 é risco extremo (Offense High - requer descredenciamento e reporte ao COAF).\n\n" +
	"%s\n\n" +
	"Responda apenas com: Risco de Lavagem de Dinheiro: [número]/10"

const decisionPrompt = "A partir da análise detalhada a seguir, por favor, em exatamente duas linhas, apresente a decisão final sobre o caso. " +
	"Inclua o score de risco na sua decisão e mencione as principais alíneas da Carta Circular 4001 do BACEN identificadas. " +
	"Caso haja necessidade de solicitar documentos (comprovante de endereço e de renda), inclua o pedido de forma concisa:\n\n" +
	"%s"

// zeroTemperature is the smallest value the request encoder will not omit.
const zeroTemperature = math.SmallestNonzeroFloat32

// Client wraps the chat completion API.
type Client struct {
	api             *openai.Client
	mode            domain.AnalysisMode
	analysisModel   string
	reasoningModel  string
	reasoningEffort string
	logger          *slog.Logger
}

// NewClient creates a client from configuration.
func NewClient(cfg domain.LLMConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	mode := cfg.Mode
	if mode == "" {
		mode = domain.ModeBasic
	}

	return &Client{
		api:             openai.NewClientWithConfig(oc),
		mode:            mode,
		analysisModel:   cfg.AnalysisModel,
		reasoningModel:  cfg.ReasoningModel,
		reasoningEffort: cfg.ReasoningEffort,
		logger:          logger,
	}
}

// Mode returns the configured analysis mode.
func (c *Client) Mode() domain.AnalysisMode {
	return c.mode
}

// Analyze returns the narrative analysis for a prompt. Failures are reported
// inside the returned text, never as an error.
func (c *Client) Analyze(ctx context.Context, prompt string) string {
	switch c.mode {
	case domain.ModeEnhanced:
		return c.enhanced(ctx, prompt)
	case domain.ModeReasoning:
		return c.complete(ctx, c.reasoningModel, prompt)
	default:
		return c.complete(ctx, c.analysisModel, prompt)
	}
}

// enhanced runs the analysis, backfills a missing score and appends a
// two-line final decision from the reasoning model.
func (c *Client) enhanced(ctx context.Context, prompt string) string {
	analysis := c.complete(ctx, c.analysisModel, prompt)

	if !strings.Contains(analysis, scoreMarker) {
		score := c.complete(ctx, c.reasoningModel, fmt.Sprintf(scorePrompt, analysis))
		analysis += "\n\n" + score
	}

	decision := c.complete(ctx, c.reasoningModel, fmt.Sprintf(decisionPrompt, analysis))
	return analysis + decisionHeader + decision
}

func (c *Client) complete(ctx context.Context, model, prompt string) string {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if model == c.reasoningModel {
		req.ReasoningEffort = c.reasoningEffort
	} else {
		req.Temperature = zeroTemperature
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("chat completion failed", "model", model, "error", err)
		return ErrorText(err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("chat completion returned no choices", "model", model)
		return ErrorText(errors.New("empty completion"))
	}

	c.logger.Debug("chat completion",
		"model", model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// ErrorText renders a completion failure as analysis text.
func ErrorText(err error) string {
	if IsContextLengthExceeded(err) {
		return CapacityMessage
	}
	return "An error occurred: " + err.Error()
}

// IsContextLengthExceeded reports whether the prompt was too long for the model.
func IsContextLengthExceeded(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && fmt.Sprint(apiErr.Code) == "context_length_exceeded" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "context_length_exceeded")
}
