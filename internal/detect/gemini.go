package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

const geminiDetectPrompt = `Detect every human face in the image. ` +
	`Respond with a JSON array where each element is an object with two keys: ` +
	`"box_2d", the face bounding box as [ymin, xmin, ymax, xmax] with ` +
	`coordinates normalized to 0-1000, and "confidence", a number between 0.0 ` +
	`and 1.0. Respond with [] if no face is visible. Output JSON only.`

// GeminiDetector is the cloud fallback detector. It asks Gemini for face
// bounding boxes as structured JSON and scales them back to pixel space.
type GeminiDetector struct {
	client *genai.Client
}

func NewGeminiDetector(ctx context.Context, apiKey string) (*GeminiDetector, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiDetector{client: client}, nil
}

func (d *GeminiDetector) Version() string {
	return geminiModel
}

// geminiFace mirrors the JSON shape requested by geminiDetectPrompt.
type geminiFace struct {
	Box        []float64 `json:"box_2d"` // [ymin, xmin, ymax, xmax] normalized to 0-1000
	Confidence float64   `json:"confidence"`
}

func (d *GeminiDetector) Detect(ctx context.Context, imageData []byte) ([]Candidate, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to read image dimensions: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: geminiDetectPrompt},
				{InlineData: &genai.Blob{Data: imageData, MIMEType: detectMIMEType(imageData)}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := d.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	content := result.Text()
	if content == "" {
		return nil, errors.New("no response from Gemini")
	}

	return parseGeminiFaces(content, cfg.Width, cfg.Height)
}

// parseGeminiFaces converts the model's normalized boxes into pixel-space
// candidates. Malformed entries are skipped rather than failing the call.
func parseGeminiFaces(content string, width, height int) ([]Candidate, error) {
	var faces []geminiFace
	if err := json.Unmarshal([]byte(content), &faces); err != nil {
		return nil, fmt.Errorf("failed to parse face JSON: %w (response: %s)", err, content)
	}

	candidates := make([]Candidate, 0, len(faces))
	for _, f := range faces {
		if len(f.Box) != 4 {
			continue
		}
		x1 := int(f.Box[1] * float64(width) / 1000)
		y1 := int(f.Box[0] * float64(height) / 1000)
		x2 := int(f.Box[3] * float64(width) / 1000)
		y2 := int(f.Box[2] * float64(height) / 1000)
		box := image.Rect(x1, y1, x2, y2)
		if box.Empty() {
			continue
		}
		candidates = append(candidates, Candidate{Box: box, Confidence: f.Confidence})
	}
	return candidates, nil
}
