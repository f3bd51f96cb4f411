package extract

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"glance/internal/index"
)

// Image produces a short placeholder description for image files. There is
// no OCR; the description keeps images visible in the context without
// shipping pixels to the model.
type Image struct{}

// Extract describes the image by MIME type, dimensions and size.
func (e *Image) Extract(_ context.Context, path string, _ int) *index.Content {
	info, err := os.Stat(path)
	if err != nil {
		return contentError(path, "image", err.Error())
	}

	mime := "image"
	if mt, err := mimetype.DetectFile(path); err == nil {
		mime = mt.String()
	}

	dims := ""
	if f, err := os.Open(path); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			dims = fmt.Sprintf(", %dx%d", cfg.Width, cfg.Height)
		}
		f.Close()
	}

	return &index.Content{
		Path:   path,
		Format: "image",
		Text: fmt.Sprintf("[image %s: %s%s, %d bytes]",
			filepath.Base(path), mime, dims, info.Size()),
	}
}
