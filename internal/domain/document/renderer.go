package document

import "context"

// RenderRequest is what the rendering engine receives
type RenderRequest struct {
	Document *GeneratedDocument
	Data     map[string]string
}

// RenderResult is what the rendering engine produced
type RenderResult struct {
	StoragePath string
	Size        int64
	ContentType string
}

// Renderer turns a numbered document and its data bag into a stored artifact.
// Templates and storage live outside this module.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}
