package ai

import (
	"context"
	"errors"

	"github.com/aq2208/stitch-order-api/internal/usecase"
)

type editRequest struct {
	Image       string `json:"image"`
	MimeType    string `json:"mimeType,omitempty"`
	Instruction string `json:"instruction"`
}

type editResponse struct {
	Image    string `json:"image"` // base64 or data URI
	MimeType string `json:"mimeType"`
}

type Editor struct{ c client }

func NewEditor(cfg Config) *Editor { return &Editor{c: newClient(cfg)} }

func (e *Editor) Edit(ctx context.Context, img usecase.Upload, instruction string) (usecase.Upload, error) {
	var out editResponse
	in := editRequest{Image: encodeImage(img), MimeType: img.ContentType, Instruction: instruction}
	if err := e.c.post(ctx, in, &out); err != nil {
		return usecase.Upload{}, err
	}
	if out.Image == "" {
		return usecase.Upload{}, errors.New("edit response has no image")
	}
	edited, err := usecase.ParseDataURI(out.Image)
	if err != nil {
		return usecase.Upload{}, err
	}
	if edited.ContentType == "" {
		edited.ContentType = out.MimeType
	}
	return edited, nil
}

var _ usecase.ImageEditor = (*Editor)(nil)
