// Package llm wraps the external language model used to explain risk
// predictions and to answer caregiver questions.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ExplanationFailed replaces the explanation when the model call fails.
const ExplanationFailed = "Error generating explanation."

const riskSystemMessage = "You are a medical assistant specialized in pregnancy risk evaluation."

var ErrResponseFormat = errors.New("model response is not the expected JSON object")

// Completer is the part of the OpenAI client the explainer needs.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Advice is the structured answer to a caregiver question.
type Advice struct {
	Answer    string   `json:"answer"`
	NextSteps []string `json:"nextSteps"`
	Urgency   string   `json:"urgency"`
}

type Explainer struct {
	client Completer
	model  string
}

func NewExplainer(client Completer, model string) *Explainer {
	return &Explainer{client: client, model: model}
}

// NewOpenAIClient builds a go-openai client. baseURL may be empty to use the
// public endpoint.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// Explain asks the model why the features were classified as risk and
// returns the raw reply.
func (e *Explainer) Explain(ctx context.Context, risk string, features map[string]interface{}) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: riskSystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: BuildRiskPrompt(risk, features)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("explain risk: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("explain risk: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// Advise answers question under systemPrompt, requiring the model to reply
// with a JSON object holding at least an answer.
func (e *Explainer) Advise(ctx context.Context, systemPrompt, question string) (*Advice, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
		MaxTokens:   1200,
	})
	if err != nil {
		return nil, fmt.Errorf("advise: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrResponseFormat)
	}
	return ParseAdvice(resp.Choices[0].Message.Content)
}

// ParseAdvice decodes a model reply into Advice.
func ParseAdvice(content string) (*Advice, error) {
	var advice Advice
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &advice); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseFormat, err)
	}
	if strings.TrimSpace(advice.Answer) == "" {
		return nil, fmt.Errorf("%w: missing answer", ErrResponseFormat)
	}
	return &advice, nil
}

// StatusCode returns the HTTP status of a failed model call, or 0 when the
// failure did not come from the model API.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
