package media

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"studio-api/pkg/logger"
)

// CloudinaryHost implements the ImageHost interface against Cloudinary's
// upload API.
type CloudinaryHost struct {
	cld    *cloudinary.Cloudinary
	logger *logger.Logger
}

// NewCloudinaryHost creates an image host client from a cloudinary:// URL
func NewCloudinaryHost(cloudinaryURL string, logger *logger.Logger) (*CloudinaryHost, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudinary client: %w", err)
	}

	return &CloudinaryHost{cld: cld, logger: logger}, nil
}

// Destroy removes an uploaded image by its public id and returns the host's
// result string.
func (h *CloudinaryHost) Destroy(ctx context.Context, publicID string) (string, error) {
	resp, err := h.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return "", fmt.Errorf("failed to destroy image %s: %w", publicID, err)
	}

	h.logger.WithFields(map[string]interface{}{
		"public_id": publicID,
		"result":    resp.Result,
	}).Debug("Image destroy completed")

	return resp.Result, nil
}
