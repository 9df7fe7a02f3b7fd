package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	gvision "google.golang.org/api/vision/v1"

	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/retry"
)

// GoogleVision talks to Cloud Vision. It detects food candidates and also reads
// printed text, which the barcode scanner uses when the bars themselves are unreadable.
type GoogleVision struct {
	svc    *gvision.Service
	policy retry.Policy
}

// NewGoogleVision creates a client. With no options the application default
// credentials are used.
func NewGoogleVision(ctx context.Context, credentialsFile string, attempts int, opts ...option.ClientOption) (*GoogleVision, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gvision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision service: %w", err)
	}
	return &GoogleVision{svc: svc, policy: retry.WithAttempts(attempts)}, nil
}

func (g *GoogleVision) annotate(ctx context.Context, image []byte, features ...*gvision.Feature) (*gvision.AnnotateImageResponse, error) {
	req := &gvision.BatchAnnotateImagesRequest{
		Requests: []*gvision.AnnotateImageRequest{{
			Image:    &gvision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: features,
		}},
	}

	var resp *gvision.BatchAnnotateImagesResponse
	err := retry.Do(ctx, g.policy, "google vision", func(ctx context.Context) error {
		var err error
		resp, err = g.svc.Images.Annotate(req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to annotate image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("vision returned no responses")
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return nil, fmt.Errorf("vision error %d: %s", r.Error.Code, r.Error.Message)
	}
	return r, nil
}

// Detect returns food candidates from objects, labels and web entities.
func (g *GoogleVision) Detect(ctx context.Context, image []byte) ([]nutrition.Candidate, error) {
	r, err := g.annotate(ctx, image,
		&gvision.Feature{Type: "OBJECT_LOCALIZATION"},
		&gvision.Feature{Type: "LABEL_DETECTION", MaxResults: maxLabelAnnotation},
		&gvision.Feature{Type: "WEB_DETECTION"},
	)
	if err != nil {
		return nil, err
	}

	var objects, labels, web []Annotation
	for _, o := range r.LocalizedObjectAnnotations {
		objects = append(objects, Annotation{Name: o.Name, Score: o.Score})
	}
	for _, l := range r.LabelAnnotations {
		labels = append(labels, Annotation{Name: l.Description, Score: l.Score})
	}
	if r.WebDetection != nil {
		for _, e := range r.WebDetection.WebEntities {
			web = append(web, Annotation{Name: e.Description, Score: e.Score})
		}
	}
	return Candidates(objects, labels, web), nil
}

// DetectText returns the words printed on the image.
func (g *GoogleVision) DetectText(ctx context.Context, image []byte) ([]string, error) {
	r, err := g.annotate(ctx, image, &gvision.Feature{Type: "TEXT_DETECTION"})
	if err != nil {
		return nil, err
	}

	var tokens []string
	for _, t := range r.TextAnnotations {
		tokens = append(tokens, strings.Fields(t.Description)...)
	}
	return tokens, nil
}
