// Package recognition turns a food photo into a single nutrition record by
// trying barcode, structured vision, name lookup and candidate fusion in turn.
package recognition

import (
	"context"
	"errors"
	"log"

	"nutrition-bot/internal/barcode"
	"nutrition-bot/internal/llm"
	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/shared"
)

// BarcodeScanner returns the barcode in an image, or "" when there is none.
type BarcodeScanner interface {
	Decode(ctx context.Context, image []byte) (string, error)
}

// ProductLookup finds product data for a barcode.
type ProductLookup interface {
	LookupProduct(ctx context.Context, code string) (*barcode.Product, error)
}

// VisionAnalyzer asks a vision model for a structured description of the photo.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (llm.Analysis, error)
}

// CandidateDetector proposes food names with confidences from image labels.
type CandidateDetector interface {
	Detect(ctx context.Context, image []byte) ([]nutrition.Candidate, error)
}

// Kind tells which tier produced a Result.
type Kind string

const (
	KindBarcode           Kind = "barcode"
	KindBarcodeUnresolved Kind = "barcode_unresolved"
	KindVision            Kind = "vision"
	KindNoFood            Kind = "no_food"
	KindName              Kind = "name"
	KindFused             Kind = "fused"
	KindNothing           Kind = "nothing"

	// KindManual marks values the user typed in; Process never returns it.
	KindManual Kind = "manual"
)

// Result is the outcome of Process. Record is always renderable.
type Result struct {
	Kind   Kind
	Record nutrition.Record
	Metas  []shared.AgentMeta
}

// Found reports whether the record describes actual food values the user can log.
func (r Result) Found() bool {
	switch r.Kind {
	case KindNoFood, KindNothing, KindBarcodeUnresolved:
		return false
	}
	return true
}

// Pipeline runs the recognition tiers. Every collaborator is optional; a
// missing one is treated like an unavailable one.
type Pipeline struct {
	scanner  BarcodeScanner
	products ProductLookup
	vision   VisionAnalyzer
	detector CandidateDetector
	matcher  *nutrition.Matcher
	resolver *nutrition.Resolver
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithBarcode(scanner BarcodeScanner, products ProductLookup) Option {
	return func(p *Pipeline) {
		p.scanner = scanner
		p.products = products
	}
}

func WithVision(v VisionAnalyzer) Option {
	return func(p *Pipeline) { p.vision = v }
}

func WithCandidates(d CandidateDetector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// NewPipeline creates a Pipeline that matches names with matcher.
func NewPipeline(matcher *nutrition.Matcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		matcher:  matcher,
		resolver: nutrition.NewResolver(matcher),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process resolves one submission. Collaborator failures are logged and
// degrade to the next tier; the only error is an unreadable image.
func (p *Pipeline) Process(ctx context.Context, sub Submission) (Result, error) {
	data, err := sub.Image.Bytes()
	if err != nil {
		return Result{}, err
	}

	if res, ok := p.tryBarcode(ctx, data); ok {
		return res, nil
	}

	var metas []shared.AgentMeta
	if p.vision != nil {
		analysis, err := p.vision.Analyze(ctx, data, MIMEType(data))
		if analysis.Meta.AgentName != "" {
			metas = append(metas, analysis.Meta)
		}
		if err != nil {
			log.Printf("structured vision unavailable for user %d: %v", sub.UserID, err)
		} else if res, ok := p.fromAnalysis(analysis); ok {
			res.Metas = metas
			return res, nil
		}
	}

	res := p.fromCandidates(ctx, data, sub.UserID)
	res.Metas = metas
	return res, nil
}

func (p *Pipeline) tryBarcode(ctx context.Context, data []byte) (Result, bool) {
	if p.scanner == nil {
		return Result{}, false
	}

	code, err := p.scanner.Decode(ctx, data)
	if err != nil {
		log.Printf("barcode decode unavailable: %v", err)
		return Result{}, false
	}
	if code == "" {
		return Result{}, false
	}

	var product *barcode.Product
	if p.products != nil {
		product, err = p.products.LookupProduct(ctx, code)
		if err != nil && !errors.Is(err, barcode.ErrNotFound) {
			log.Printf("product lookup unavailable for %s: %v", code, err)
		}
	}

	if product == nil {
		return Result{Kind: KindBarcodeUnresolved, Record: unresolvedBarcode(code, "")}, true
	}

	if product.HasMacros {
		rec := nutrition.Record{
			Name:          product.Name,
			PortionWeight: product.PortionWeight,
			Source:        nutrition.SourceBarcode,
			DetectedItems: []string{},
			Barcode:       code,
		}
		if rec.PortionWeight <= 0 {
			rec.PortionWeight = nutrition.DefaultPortionWeight
		}
		return Result{Kind: KindBarcode, Record: rec.WithMacros(product.Macros.Clamp())}, true
	}

	// Name-only product: accept it when the knowledge base knows the name.
	lookup := p.matcher.Lookup(product.Name)
	if lookup.Estimated {
		return Result{Kind: KindBarcodeUnresolved, Record: unresolvedBarcode(code, product.Name)}, true
	}
	lookup.Source = nutrition.SourceBarcode
	lookup.Barcode = code
	return Result{Kind: KindBarcode, Record: lookup}, true
}

func unresolvedBarcode(code, name string) nutrition.Record {
	if name == "" {
		name = nutrition.UnknownProductName
	}
	return nutrition.Record{
		Name:          name,
		PortionWeight: nutrition.DefaultPortionWeight,
		Estimated:     true,
		Source:        nutrition.SourceBarcode,
		DetectedItems: []string{},
		Barcode:       code,
	}
}

func (p *Pipeline) fromAnalysis(a llm.Analysis) (Result, bool) {
	if !a.FoodPresent {
		return Result{Kind: KindNoFood, Record: nutrition.Record{
			Name:          nutrition.NoFoodDetectedName,
			PortionWeight: nutrition.DefaultPortionWeight,
			Estimated:     true,
			Source:        nutrition.SourceVisionStructured,
			DetectedItems: []string{},
		}}, true
	}

	ingredients := append([]string{}, a.Ingredients...)

	if a.Macros != nil {
		name := a.Name
		if name == "" {
			name = nutrition.UnknownDishName
		}
		rec := nutrition.Record{
			Name:          name,
			PortionWeight: a.PortionWeight,
			Source:        nutrition.SourceVisionStructured,
			DetectedItems: ingredients,
		}
		if rec.PortionWeight <= 0 {
			rec.PortionWeight = nutrition.DefaultPortionWeight
		}
		return Result{Kind: KindVision, Record: rec.WithMacros(a.Macros.Clamp())}, true
	}

	if a.Name != "" {
		rec := p.matcher.Lookup(a.Name)
		if len(rec.DetectedItems) == 0 {
			rec.DetectedItems = ingredients
		}
		return Result{Kind: KindName, Record: rec}, true
	}
	return Result{}, false
}

func (p *Pipeline) fromCandidates(ctx context.Context, data []byte, userID int64) Result {
	var candidates []nutrition.Candidate
	if p.detector != nil {
		var err error
		candidates, err = p.detector.Detect(ctx, data)
		if err != nil {
			log.Printf("candidate recognition unavailable for user %d: %v", userID, err)
		}
	}

	if len(candidates) == 0 {
		return Result{Kind: KindNothing, Record: nutrition.UnknownDish()}
	}

	rec := p.resolver.Resolve(candidates)
	if rec.Source == nutrition.SourceFused {
		return Result{Kind: KindFused, Record: rec}
	}
	return Result{Kind: KindName, Record: rec}
}
