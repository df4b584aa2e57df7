// Package vertex binds the generator capabilities to Vertex AI through the
// Google Gen AI SDK: Gemini image models for frames and Veo for video.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/auth/credentials"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/maauso/clipforge/internal/generator"
)

// Static errors for Vertex client construction.
var (
	// ErrProjectIDRequired is returned when no project ID is provided.
	ErrProjectIDRequired = errors.New("vertex: project ID is required")
	// ErrCredentialsFileRequired is returned when no service account file is provided.
	ErrCredentialsFileRequired = errors.New("vertex: service account file is required")
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Defaults matching the models the pipeline was tuned against.
const (
	DefaultImageModel    = "gemini-3-pro-image-preview"
	DefaultVideoModel    = "veo-3.1-generate-001"
	DefaultImageLocation = "global"
	DefaultVideoLocation = "us-central1"
	DefaultResolution    = "720p"
)

// contentModel is the subset of *genai.Models used for images.
type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// videoModel is the subset of *genai.Models used for videos.
type videoModel interface {
	GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

// operationGetter is the subset of *genai.Operations used for polling.
type operationGetter interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// Client implements generator.Generator on Vertex AI. Image models are
// served from the image location and Veo from the video location, so two
// SDK clients are held.
type Client struct {
	projectID     string
	credsFile     string
	imageLocation string
	videoLocation string
	imageModel    string
	videoModel    string
	resolution    string
	limiter       *rate.Limiter

	images     contentModel
	videos     videoModel
	operations operationGetter
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithImageModel overrides the image model.
func WithImageModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.imageModel = model
		}
	}
}

// WithVideoModel overrides the video model.
func WithVideoModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.videoModel = model
		}
	}
}

// WithLocations overrides the regions used for image and video models.
func WithLocations(image, video string) ClientOption {
	return func(c *Client) {
		if image != "" {
			c.imageLocation = image
		}
		if video != "" {
			c.videoLocation = video
		}
	}
}

// WithResolution sets the output resolution for generated videos.
func WithResolution(resolution string) ClientOption {
	return func(c *Client) {
		if resolution != "" {
			c.resolution = resolution
		}
	}
}

// WithRequestsPerMinute paces every outgoing call. Zero disables pacing.
func WithRequestsPerMinute(rpm int) ClientOption {
	return func(c *Client) {
		if rpm > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
	}
}

// NewClient creates a Vertex AI client authenticated with the service
// account file at credsFile.
func NewClient(ctx context.Context, projectID, credsFile string, opts ...ClientOption) (*Client, error) {
	if projectID == "" {
		return nil, ErrProjectIDRequired
	}
	if credsFile == "" {
		return nil, ErrCredentialsFileRequired
	}
	if _, err := os.Stat(credsFile); err != nil {
		return nil, fmt.Errorf("vertex: service account file: %w", err)
	}

	c := newClient(projectID, credsFile, opts...)

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsFile: credsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex: load credentials: %w", err)
	}

	imageClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     projectID,
		Location:    c.imageLocation,
		Backend:     genai.BackendVertexAI,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex: create image client: %w", err)
	}

	videoClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     projectID,
		Location:    c.videoLocation,
		Backend:     genai.BackendVertexAI,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex: create video client: %w", err)
	}

	c.images = imageClient.Models
	c.videos = videoClient.Models
	c.operations = videoClient.Operations
	return c, nil
}

func newClient(projectID, credsFile string, opts ...ClientOption) *Client {
	c := &Client{
		projectID:     projectID,
		credsFile:     credsFile,
		imageLocation: DefaultImageLocation,
		videoLocation: DefaultVideoLocation,
		imageModel:    DefaultImageModel,
		videoModel:    DefaultVideoModel,
		resolution:    DefaultResolution,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateImage generates one image from a text prompt.
func (c *Client) GenerateImage(ctx context.Context, req generator.ImageRequest) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.images.GenerateContent(ctx, c.imageModel, genai.Text(req.Prompt), imageConfig(req.AspectRatio))
	if err != nil {
		return nil, fmt.Errorf("vertex: generate image: %w", classifyError(err))
	}
	return firstImage(resp)
}

// GenerateImageVariation generates one image guided by a reference image.
func (c *Client) GenerateImageVariation(ctx context.Context, req generator.VariationRequest) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	mimeType := req.ReferenceMIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Reference, mimeType),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}

	resp, err := c.images.GenerateContent(ctx, c.imageModel, contents, imageConfig(req.AspectRatio))
	if err != nil {
		return nil, fmt.Errorf("vertex: generate variation: %w", classifyError(err))
	}
	return firstImage(resp)
}

// GenerateVideo submits a first-frame/last-frame video generation.
func (c *Client) GenerateVideo(ctx context.Context, req generator.VideoRequest) (*generator.Operation, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	first := &genai.Image{ImageBytes: req.FirstFrame, MIMEType: "image/png"}
	op, err := c.videos.GenerateVideos(ctx, c.videoModel, req.Prompt, first, videoConfig(req, c.resolution))
	if err != nil {
		return nil, fmt.Errorf("vertex: generate video: %w", classifyError(err))
	}
	return toOperation(op), nil
}

// PollOperation refetches a video operation by name.
func (c *Client) PollOperation(ctx context.Context, op *generator.Operation) (*generator.Operation, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	latest, err := c.operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: op.Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("vertex: get operation %s: %w", op.Name, classifyError(err))
	}
	return toOperation(latest), nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("vertex: rate limiter: %w", err)
	}
	return nil
}

// Compile-time check that Client implements generator.Generator.
var _ generator.Generator = (*Client)(nil)
