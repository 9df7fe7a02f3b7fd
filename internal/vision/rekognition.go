package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"nutrition-bot/internal/nutrition"
)

const rekognitionMinConfidence = 50

// RekognitionAPI is the part of the Rekognition client the detector needs.
type RekognitionAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	DetectText(ctx context.Context, in *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Rekognition detects food candidates with AWS Rekognition labels.
type Rekognition struct {
	client RekognitionAPI
}

// NewRekognition loads the default AWS configuration for region.
func NewRekognition(ctx context.Context, region string) (*Rekognition, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewRekognitionWithClient(rekognition.NewFromConfig(cfg)), nil
}

func NewRekognitionWithClient(client RekognitionAPI) *Rekognition {
	return &Rekognition{client: client}
}

// Detect runs label detection. Rekognition has no web entities or object names
// distinct from labels, so labels go through the label rules only.
func (r *Rekognition) Detect(ctx context.Context, image []byte) ([]nutrition.Candidate, error) {
	out, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(maxLabelAnnotation),
		MinConfidence: aws.Float32(rekognitionMinConfidence),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect labels: %w", err)
	}

	var labels []Annotation
	for _, l := range out.Labels {
		name := aws.ToString(l.Name)
		// Confidence is a percentage.
		score := float64(aws.ToFloat32(l.Confidence)) / 100
		labels = append(labels, Annotation{Name: name, Score: score})
	}
	return Candidates(nil, labels, nil), nil
}

// DetectText returns the words Rekognition reads on the image.
func (r *Rekognition) DetectText(ctx context.Context, image []byte) ([]string, error) {
	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect text: %w", err)
	}

	var tokens []string
	for _, d := range out.TextDetections {
		if d.Type != types.TextTypesWord {
			continue
		}
		tokens = append(tokens, strings.Fields(aws.ToString(d.DetectedText))...)
	}
	return tokens, nil
}
