package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

type stubRekognition struct {
	labels     []types.Label
	texts      []types.TextDetection
	err        error
	labelCalls int
	lastInput  *rekognition.DetectLabelsInput
}

func (s *stubRekognition) DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	s.labelCalls++
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	return &rekognition.DetectLabelsOutput{Labels: s.labels}, nil
}

func (s *stubRekognition) DetectText(ctx context.Context, in *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &rekognition.DetectTextOutput{TextDetections: s.texts}, nil
}

func TestRekognitionDetect(t *testing.T) {
	t.Run("ConvertsPercentages", func(t *testing.T) {
		stub := &stubRekognition{labels: []types.Label{
			{Name: aws.String("Burger"), Confidence: aws.Float32(92)},
			{Name: aws.String("Person"), Confidence: aws.Float32(55)},
			{Name: aws.String("Food"), Confidence: aws.Float32(99)},
		}}
		got, err := NewRekognitionWithClient(stub).Detect(context.Background(), []byte("image"))
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 candidates, got %+v", got)
		}
		if got[0].Name != "Food" || got[1].Name != "Burger" {
			t.Errorf("Expected Food then Burger, got %+v", got)
		}
		if got[1].Confidence < 0.919 || got[1].Confidence > 0.921 {
			t.Errorf("Expected confidence 0.92, got %v", got[1].Confidence)
		}
		if string(stub.lastInput.Image.Bytes) != "image" {
			t.Error("Expected image bytes to be sent")
		}
	})

	t.Run("Error", func(t *testing.T) {
		stub := &stubRekognition{err: errors.New("AccessDenied")}
		if _, err := NewRekognitionWithClient(stub).Detect(context.Background(), []byte("image")); err == nil {
			t.Fatal("Expected an error, got nil")
		}
	})
}

func TestRekognitionDetectText(t *testing.T) {
	stub := &stubRekognition{texts: []types.TextDetection{
		{DetectedText: aws.String("Сок 4601234567890"), Type: types.TextTypesLine},
		{DetectedText: aws.String("4601234567890"), Type: types.TextTypesWord},
	}}
	tokens, err := NewRekognitionWithClient(stub).DetectText(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("DetectText failed: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "4601234567890" {
		t.Errorf("Expected word tokens only, got %v", tokens)
	}
}
