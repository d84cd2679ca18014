package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// visionConfidence is the assumed confidence for vision transcriptions. The
// chat API does not report one, so the fallback result is taken at face
// value once the primary engine has already come up short.
const visionConfidence = 0.9

// VisionEngine is the fallback OCR engine. It sends the page image to a
// vision-capable chat model and asks for a verbatim transcription.
type VisionEngine struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewVisionEngine creates a vision-backed OCR engine.
func NewVisionEngine(apiKey, model string, temperature float32, maxTokens int, logger *zap.Logger) *VisionEngine {
	return &VisionEngine{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

func (e *VisionEngine) Name() string { return "vision" }

// Recognize transcribes a single page image.
func (e *VisionEngine) Recognize(ctx context.Context, page Page) (Result, error) {
	base64Img := base64.StdEncoding.EncodeToString(page.Image)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You transcribe scanned service voucher documents. Return the text content of the image verbatim, preserving line breaks. Do not summarize, annotate, or add anything that is not printed on the page.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Transcribe this scanned page exactly as printed.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:image/png;base64,%s", base64Img),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Int("page", page.Index), zap.Error(err))
		return Result{}, fmt.Errorf("vision transcription failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no response from vision API")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	e.logger.Debug("Vision transcription received",
		zap.Int("page", page.Index),
		zap.Int("content_length", len(text)))

	return Result{Text: text, Confidence: visionConfidence}, nil
}
