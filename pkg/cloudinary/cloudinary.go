package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Configured reports whether all credentials are present.
func (c Config) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Service stores chat attachments in Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
		now:    time.Now,
	}, nil
}

// Upload sends the attachment into the folder for its kind and returns a
// secure URL.
func (s *Service) Upload(ctx context.Context, name, kind string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       Folder(s.folder, kind),
		PublicID:     PublicID(name, s.now()),
		ResourceType: ResourceType(kind),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("kind", kind).Msg("attachment uploaded to cloudinary")

	return result.SecureURL, nil
}

// ResourceType maps an attachment kind to the Cloudinary resource type.
// Cloudinary files audio under video.
func ResourceType(kind string) string {
	switch kind {
	case "image":
		return "image"
	case "audio":
		return "video"
	case "document":
		return "raw"
	default:
		return "auto"
	}
}

// Folder nests kind under the configured base folder.
func Folder(base, kind string) string {
	base = strings.Trim(base, "/")
	if kind == "" {
		return base
	}
	if base == "" {
		return kind
	}
	return base + "/" + kind
}

// PublicID derives a unique public id from the original file name.
func PublicID(name string, now time.Time) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	return fmt.Sprintf("%s-%d", base, now.UnixNano())
}
