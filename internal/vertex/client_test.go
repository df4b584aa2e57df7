package vertex

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/maauso/clipforge/internal/generator"
)

type fakeContentModel struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeContentModel) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

type fakeVideoModel struct {
	model  string
	prompt string
	image  *genai.Image
	config *genai.GenerateVideosConfig
	op     *genai.GenerateVideosOperation
	err    error
}

func (f *fakeVideoModel) GenerateVideos(_ context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	f.model = model
	f.prompt = prompt
	f.image = image
	f.config = config
	return f.op, f.err
}

type fakeOperations struct {
	requested string
	op        *genai.GenerateVideosOperation
	err       error
}

func (f *fakeOperations) GetVideosOperation(_ context.Context, op *genai.GenerateVideosOperation, _ *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error) {
	f.requested = op.Name
	return f.op, f.err
}

func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here you go"},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}},
			}},
		}},
	}
}

func TestNewClient_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "", "sa.json")
	assert.ErrorIs(t, err, ErrProjectIDRequired)

	_, err = NewClient(ctx, "proj", "")
	assert.ErrorIs(t, err, ErrCredentialsFileRequired)

	_, err = NewClient(ctx, "proj", t.TempDir()+"/missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account file")
}

func TestNewClient_Options(t *testing.T) {
	c := newClient("proj", "sa.json",
		WithImageModel("img-model"),
		WithVideoModel("vid-model"),
		WithLocations("europe-west4", ""),
		WithResolution("1080p"),
		WithRequestsPerMinute(30),
	)

	assert.Equal(t, "img-model", c.imageModel)
	assert.Equal(t, "vid-model", c.videoModel)
	assert.Equal(t, "europe-west4", c.imageLocation)
	assert.Equal(t, DefaultVideoLocation, c.videoLocation)
	assert.Equal(t, "1080p", c.resolution)
	require.NotNil(t, c.limiter)

	d := newClient("proj", "sa.json", WithRequestsPerMinute(0), WithImageModel(""))
	assert.Nil(t, d.limiter)
	assert.Equal(t, DefaultImageModel, d.imageModel)
}

func TestClient_GenerateImage(t *testing.T) {
	images := &fakeContentModel{resp: imageResponse([]byte("png"))}
	c := newClient("proj", "sa.json")
	c.images = images

	data, err := c.GenerateImage(context.Background(), generator.ImageRequest{Prompt: "a lighthouse", AspectRatio: "9:16"})

	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, DefaultImageModel, images.model)
	assert.Equal(t, []string{"IMAGE"}, images.config.ResponseModalities)
	require.NotNil(t, images.config.ImageConfig)
	assert.Equal(t, "9:16", images.config.ImageConfig.AspectRatio)
	require.Len(t, images.contents, 1)
	assert.Equal(t, "a lighthouse", images.contents[0].Parts[0].Text)
}

func TestClient_GenerateImage_NoImage(t *testing.T) {
	c := newClient("proj", "sa.json")
	c.images = &fakeContentModel{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "refused"}}}}},
	}}

	_, err := c.GenerateImage(context.Background(), generator.ImageRequest{Prompt: "x"})
	assert.ErrorIs(t, err, generator.ErrNoArtifact)
}

func TestClient_GenerateImageVariation(t *testing.T) {
	images := &fakeContentModel{resp: imageResponse([]byte("end"))}
	c := newClient("proj", "sa.json")
	c.images = images

	data, err := c.GenerateImageVariation(context.Background(), generator.VariationRequest{
		Reference: []byte("start"),
		Prompt:    "same scene at night",
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("end"), data)
	require.Len(t, images.contents, 1)
	parts := images.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, []byte("start"), parts[0].InlineData.Data)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, "same scene at night", parts[1].Text)
}

func TestClient_RateLimitIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"api error value", genai.APIError{Code: 429, Message: "quota"}, true},
		{"api error pointer", &genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, true},
		{"string match", errors.New("rpc error: code = 429"), true},
		{"resource exhausted text", fmt.Errorf("wrapped: %w", errors.New("RESOURCE_EXHAUSTED")), true},
		{"bad request", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad prompt"}, false},
		{"other", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient("proj", "sa.json")
			c.images = &fakeContentModel{err: tt.err}

			_, err := c.GenerateImage(context.Background(), generator.ImageRequest{Prompt: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.want, generator.IsTransient(err))
		})
	}
}

func TestClient_GenerateVideo(t *testing.T) {
	videos := &fakeVideoModel{op: &genai.GenerateVideosOperation{Name: "projects/p/operations/1"}}
	c := newClient("proj", "sa.json")
	c.videos = videos

	op, err := c.GenerateVideo(context.Background(), generator.VideoRequest{
		FirstFrame:      []byte("start"),
		LastFrame:       []byte("end"),
		Prompt:          "pan left",
		AspectRatio:     "16:9",
		DurationSeconds: 6,
	})

	require.NoError(t, err)
	assert.Equal(t, "projects/p/operations/1", op.Name)
	assert.False(t, op.Done)

	assert.Equal(t, DefaultVideoModel, videos.model)
	assert.Equal(t, "pan left", videos.prompt)
	assert.Equal(t, []byte("start"), videos.image.ImageBytes)
	require.NotNil(t, videos.config.LastFrame)
	assert.Equal(t, []byte("end"), videos.config.LastFrame.ImageBytes)
	assert.Equal(t, "16:9", videos.config.AspectRatio)
	assert.Equal(t, "720p", videos.config.Resolution)
	require.NotNil(t, videos.config.DurationSeconds)
	assert.Equal(t, int32(6), *videos.config.DurationSeconds)
	require.NotNil(t, videos.config.GenerateAudio)
	assert.False(t, *videos.config.GenerateAudio)
}

func TestClient_PollOperation(t *testing.T) {
	ops := &fakeOperations{op: &genai.GenerateVideosOperation{
		Name: "op-7",
		Done: true,
		Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{{
				Video: &genai.Video{URI: "gs://bucket/out.mp4", MIMEType: "video/mp4"},
			}},
		},
	}}
	c := newClient("proj", "sa.json")
	c.operations = ops

	op, err := c.PollOperation(context.Background(), &generator.Operation{Name: "op-7"})

	require.NoError(t, err)
	assert.Equal(t, "op-7", ops.requested)
	assert.True(t, op.Done)
	require.NotNil(t, op.Video)
	assert.Equal(t, "gs://bucket/out.mp4", op.Video.URI)

	res, err := generator.ExtractVideo(op)
	require.NoError(t, err)
	assert.True(t, res.IsReference())
}

func TestToOperation_Error(t *testing.T) {
	op := toOperation(&genai.GenerateVideosOperation{
		Name:  "op-9",
		Done:  true,
		Error: map[string]any{"code": 3, "message": "prompt blocked"},
	})

	assert.Equal(t, "prompt blocked", op.Error)
	_, err := generator.ExtractVideo(op)
	assert.ErrorIs(t, err, generator.ErrGenerationFailed)

	assert.Equal(t, &generator.Operation{}, toOperation(nil))
}

func TestClient_LimiterHonoursContext(t *testing.T) {
	c := newClient("proj", "sa.json", WithRequestsPerMinute(1))
	c.images = &fakeContentModel{resp: imageResponse([]byte("png"))}

	// First call consumes the only token.
	_, err := c.GenerateImage(context.Background(), generator.ImageRequest{Prompt: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GenerateImage(ctx, generator.ImageRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
