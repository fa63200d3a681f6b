package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/acari-app/acari-backend/pkg/config"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

const (
	mimeJSON       = "application/json"
	defaultTimeout = 90 * time.Second
)

var errAPIKeyRequired = errors.New("genai api key is required")

// Image is one generated image as returned by the provider.
type Image struct {
	Data     []byte
	MIMEType string
}

// Client wraps the Gemini API for JSON-mode text and image generation.
type Client struct {
	client     *genai.Client
	textModel  string
	imageModel string
	timeout    time.Duration
}

func NewClient(ctx context.Context, cfg config.GenAIConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"text_model":  cfg.TextModel,
			"image_model": cfg.ImageModel,
		}), "genai client initialized")
	}
	return &Client{
		client:     client,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		timeout:    timeout,
	}, nil
}

// GenerateJSON runs a JSON-mode generation and decodes the answer into out.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: mimeJSON}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), cfg)
	if err != nil {
		return MapError(err, "content generation failed")
	}
	return DecodeJSON(resp.Text(), out)
}

// GenerateImages asks the image model for n images.
func (c *Client) GenerateImages(ctx context.Context, prompt string, n int) ([]Image, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(n),
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, MapError(err, "image generation failed")
	}
	images := make([]Image, 0, len(resp.GeneratedImages))
	for _, generated := range resp.GeneratedImages {
		if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			continue
		}
		images = append(images, Image{Data: generated.Image.ImageBytes, MIMEType: generated.Image.MIMEType})
	}
	if len(images) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "image generation returned no images")
	}
	return images, nil
}

// DecodeJSON parses a model answer, tolerating a fenced ```json block.
func DecodeJSON(text string, out any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if text == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "content generation returned no text")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "content generation returned malformed json")
	}
	return nil
}

// MapError converts a provider failure into the service taxonomy. Credit
// exhaustion (402) and rate limits (429) keep the provider's message.
func MapError(err error, message string) error {
	if err == nil {
		return nil
	}
	if code, msg, ok := apiError(err); ok {
		switch code {
		case http.StatusPaymentRequired, http.StatusTooManyRequests:
			if msg == "" {
				msg = message
			}
			return pkgerrors.Wrap(pkgerrors.CodeForStatus(code), err, msg)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "content generation timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func apiError(err error) (int, string, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value.Code, value.Message, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message, true
	}
	return 0, "", false
}
