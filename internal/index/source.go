package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
)

// SourceMeta describes where a batch of documents came from. Records point
// at it through their id_source field.
type SourceMeta struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Group       string    `json:"group"`
	Description string    `json:"description"`
	Website     string    `json:"website"`
	URL         string    `json:"url"`
	Country     string    `json:"country"`
	Discovered  time.Time `json:"discovered"`
}

// SourceStore is a sink that can also hold source metadata.
type SourceStore interface {
	RegisterSource(ctx context.Context, meta SourceMeta) error
}

// RegisterSource fills defaults on meta, validates it and stores it. The
// stored value is returned so callers learn a generated id.
func RegisterSource(ctx context.Context, store SourceStore, meta SourceMeta) (SourceMeta, error) {
	meta.Title = strings.TrimSpace(meta.Title)
	v := common.NewValidator()
	v.Field("title", meta.Title, common.Required)
	if v.HasErrors() {
		return meta, common.NewAppError("VALIDATION_ERROR", v.ErrorMessage(), common.ErrValidation)
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Discovered.IsZero() {
		meta.Discovered = time.Now().UTC()
	}
	if err := store.RegisterSource(ctx, meta); err != nil {
		return meta, fmt.Errorf("register source %s: %w", meta.ID, err)
	}
	return meta, nil
}
