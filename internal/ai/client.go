// Package ai wraps the language-model providers behind a small client
// that the bot receives as a dependency.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
)

const geminiModel = "gemini-1.5-flash"

// ParsedCommand is the model's reading of a free-form message. Values
// that the message does not mention stay nil.
type ParsedCommand struct {
	Intent string   `json:"intent"`
	Sugar  *float64 `json:"sugar"`
	XE     *float64 `json:"xe"`
	Carbs  *float64 `json:"carbs"`
	Dose   *float64 `json:"dose"`
}

// Client talks to Gemini with OpenAI as fallback. Both providers are
// constructed eagerly so a bad key fails at startup, not mid-dialogue.
type Client struct {
	gemini *genai.Client
	openai *openai.Client
}

func NewClient(ctx context.Context, geminiAPIKey, openaiAPIKey string) (*Client, error) {
	geminiClient, err := genai.NewClient(ctx, option.WithAPIKey(geminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{
		gemini: geminiClient,
		openai: openai.NewClient(openaiAPIKey),
	}, nil
}

func (c *Client) Close() error {
	return c.gemini.Close()
}

const parseCommandPrompt = `You are the text understanding layer of a diabetes diary bot.
The user writes short free-form messages in Russian or English about blood sugar,
bread units (XE), carbohydrates in grams and insulin doses.

TASK:
Classify the message and extract any numeric values it contains.

REQUIREMENTS:
- intent is one of: "log_entry", "ask_dose", "other"
- "log_entry": the user reports measurements or food
- "ask_dose": the user asks how much insulin to take
- "other": anything else
- Extract sugar (mmol/L), xe, carbs (grams), dose (units) only when the
  message clearly states them; omit fields you are not sure about
- Do not guess or invent numbers

CRITICAL JSON FORMAT REQUIREMENTS:
- Your response MUST be a valid JSON object and nothing else
- No markdown, no code fences, no explanations
- Format:
  {"intent": "log_entry", "sugar": 5.6, "xe": 2, "carbs": 24, "dose": 3}

Message:
%s`

// ParseCommand asks the model to read a free-form message. Callers treat
// any error as "no intent recognized" and fall back to a help prompt.
func (c *Client) ParseCommand(ctx context.Context, text string) (*ParsedCommand, error) {
	prompt := fmt.Sprintf(parseCommandPrompt, text)

	raw, err := c.generateText(ctx, prompt)
	if err != nil {
		return nil, apperrors.NewExternalAPIError(err, "Gemini")
	}

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return nil, apperrors.NewExternalAPIError(fmt.Errorf("no valid JSON found in response"), "Gemini")
	}
	var cmd ParsedCommand
	if err := json.Unmarshal([]byte(jsonStr), &cmd); err != nil {
		return nil, apperrors.NewExternalAPIError(fmt.Errorf("failed to parse response: %w", err), "Gemini")
	}
	return &cmd, nil
}

const describePhotoPrompt = `You are a certified diabetes educator specializing in nutrition analysis.
Describe the food in the image for a diabetes diary.

REQUIREMENTS:
- Name the food items and estimate total carbohydrates in grams and bread
  units (1 XE = 12 g of carbohydrates)
- Consider portion sizes and likely hidden ingredients
- If the image contains nutritional information or packaging, prioritize that data
- IMPORTANT: Respond in Russian
- Keep the description short, state carbohydrates as "N г углеводов" and
  bread units as "N ХЕ" so they are easy to read
- Do not give dosing advice`

// DescribeMealPhoto returns a free-text description of a meal photo.
// Gemini goes first; OpenAI picks up when Gemini fails.
func (c *Client) DescribeMealPhoto(ctx context.Context, imageURL string) (string, error) {
	text, err := c.describeWithGemini(ctx, imageURL)
	if err == nil {
		return text, nil
	}
	logger.Warningf("Gemini photo analysis failed, falling back to OpenAI: %v", err)

	text, err = c.describeWithOpenAI(ctx, imageURL)
	if err != nil {
		return "", apperrors.NewExternalAPIError(err, "OpenAI")
	}
	return text, nil
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	model := c.gemini.GenerativeModel(geminiModel)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return geminiResponseText(resp)
}

func (c *Client) describeWithGemini(ctx context.Context, imageURL string) (string, error) {
	imageData, err := downloadImage(imageURL)
	if err != nil {
		return "", err
	}

	model := c.gemini.GenerativeModel(geminiModel)
	img := genai.ImageData("image/jpeg", imageData)
	resp, err := model.GenerateContent(ctx, img, genai.Text(describePhotoPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return geminiResponseText(resp)
}

func (c *Client) describeWithOpenAI(ctx context.Context, imageURL string) (string, error) {
	resp, err := c.openai.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4VisionPreview,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: describePhotoPrompt,
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL: imageURL,
							},
						},
					},
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func geminiResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type")
	}
	return strings.TrimSpace(string(text)), nil
}

func downloadImage(imageURL string) ([]byte, error) {
	resp, err := http.Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return imageData, nil
}

// extractJSON pulls a JSON object out of a response that may be wrapped
// in code fences or surrounding text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
