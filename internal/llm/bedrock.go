package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const DefaultBedrockEmbeddingModel = "amazon.titan-embed-text-v2:0"

type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockEmbedder embeds text with a Titan embedding model
type BedrockEmbedder struct {
	client  modelInvoker
	modelID string
}

// NewBedrockEmbedder uses ambient AWS credentials/profile
func NewBedrockEmbedder(ctx context.Context, region, modelID string) (*BedrockEmbedder, error) {
	loadOptions := []func(*awsconfig.LoadOptions) error{}
	if trimmedRegion := strings.TrimSpace(region); trimmedRegion != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(trimmedRegion))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newBedrockEmbedder(bedrockruntime.NewFromConfig(cfg), modelID), nil
}

func newBedrockEmbedder(client modelInvoker, modelID string) *BedrockEmbedder {
	if modelID == "" {
		modelID = DefaultBedrockEmbeddingModel
	}
	return &BedrockEmbedder{client: client, modelID: modelID}
}

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (b *BedrockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("missing text to embed")
	}

	body, err := json.Marshal(titanRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("marshal titan request: %w", err)
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke model %s failed: %w", b.modelID, err)
	}

	var resp titanResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode titan response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("bedrock model %s returned no vector", b.modelID)
	}
	return resp.Embedding, nil
}
