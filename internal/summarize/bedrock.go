package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Bedrock defaults.
const (
	DefaultBedrockModel = "anthropic.claude-3-5-haiku-20241022-v1:0"
	anthropicVersion    = "bedrock-2023-05-31"
)

// BedrockConfig configures a Bedrock completer. Empty keys use the default
// AWS credential chain.
type BedrockConfig struct {
	Region       string
	Model        string
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// invoker is the part of the bedrockruntime client used here.
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock calls an Anthropic model on AWS Bedrock.
type Bedrock struct {
	client invoker
	model  string
}

// NewBedrock loads AWS configuration and creates the runtime client.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newBedrockWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg.Model), nil
}

func newBedrockWithClient(client invoker, model string) *Bedrock {
	if model == "" {
		model = DefaultBedrockModel
	}
	return &Bedrock{client: client, model: model}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float64            `json:"temperature"`
	TopP             float64            `json:"top_p"`
}

// Complete implements Completer.
func (b *Bedrock) Complete(ctx context.Context, req Request) (Reply, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		System:           req.System,
		Messages:         []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature:      req.Temperature,
		TopP:             req.TopP,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("bedrock invoke %s: %w", b.model, err)
	}
	if out == nil || len(out.Body) == 0 {
		return Reply{}, errors.New("empty response from bedrock")
	}
	return DecodeReply(out.Body)
}
