package ai

import (
	"context"
	"errors"

	"github.com/aq2208/stitch-order-api/internal/usecase"
)

type assessRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType,omitempty"`
}

type assessResponse struct {
	Approved *bool  `json:"approved"`
	Reason   string `json:"reason"`
}

// Assessor is the black-box photo classifier. Callers treat any error as a
// rejection.
type Assessor struct{ c client }

func NewAssessor(cfg Config) *Assessor { return &Assessor{c: newClient(cfg)} }

func (a *Assessor) Assess(ctx context.Context, img usecase.Upload) (usecase.Verdict, error) {
	var out assessResponse
	if err := a.c.post(ctx, assessRequest{Image: encodeImage(img), MimeType: img.ContentType}, &out); err != nil {
		return usecase.Verdict{}, err
	}
	if out.Approved == nil {
		return usecase.Verdict{}, errors.New("assessment response has no verdict")
	}
	return usecase.Verdict{Approved: *out.Approved, Reason: out.Reason}, nil
}

var _ usecase.QualityAssessor = (*Assessor)(nil)
