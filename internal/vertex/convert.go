package vertex

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/maauso/clipforge/internal/generator"
)

func imageConfig(aspectRatio string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	}
	if aspectRatio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: aspectRatio}
	}
	return cfg
}

func videoConfig(req generator.VideoRequest, resolution string) *genai.GenerateVideosConfig {
	cfg := &genai.GenerateVideosConfig{
		AspectRatio:   req.AspectRatio,
		GenerateAudio: genai.Ptr(false),
		Resolution:    resolution,
	}
	if req.DurationSeconds > 0 {
		cfg.DurationSeconds = genai.Ptr(int32(req.DurationSeconds))
	}
	if len(req.LastFrame) > 0 {
		cfg.LastFrame = &genai.Image{ImageBytes: req.LastFrame, MIMEType: "image/png"}
	}
	return cfg
}

// firstImage returns the first inline image part of a response.
func firstImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty image response", generator.ErrNoArtifact)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil {
				continue
			}
			if strings.HasPrefix(part.InlineData.MIMEType, "image/") && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no image in response", generator.ErrNoArtifact)
}

// toOperation maps an SDK operation to the provider-neutral handle.
func toOperation(op *genai.GenerateVideosOperation) *generator.Operation {
	if op == nil {
		return &generator.Operation{}
	}

	out := &generator.Operation{
		Name: op.Name,
		Done: op.Done,
	}
	if len(op.Error) > 0 {
		out.Error = operationErrorMessage(op.Error)
	}
	if op.Response == nil {
		return out
	}

	for _, gv := range op.Response.GeneratedVideos {
		if gv == nil || gv.Video == nil {
			continue
		}
		out.Video = &generator.VideoPayload{
			Bytes:    gv.Video.VideoBytes,
			URI:      gv.Video.URI,
			MIMEType: gv.Video.MIMEType,
		}
		break
	}
	return out
}

func operationErrorMessage(e map[string]any) string {
	if msg, ok := e["message"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("%v", e)
}

// classifyError marks rate-limit and quota signals as generator.ErrRateLimited.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if isRateLimit(err) {
		return fmt.Errorf("%w: %w", generator.ErrRateLimited, err)
	}
	return err
}

func isRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
