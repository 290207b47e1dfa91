package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestResourceType(t *testing.T) {
	require.Equal(t, "image", ResourceType("image"))
	require.Equal(t, "video", ResourceType("audio"))
	require.Equal(t, "raw", ResourceType("document"))
	require.Equal(t, "auto", ResourceType("other"))
}

func TestFolder(t *testing.T) {
	require.Equal(t, "trailmate/chat/audio", Folder("/trailmate/chat/", "audio"))
	require.Equal(t, "image", Folder("", "image"))
	require.Equal(t, "trailmate", Folder("trailmate", ""))
}

func TestPublicID(t *testing.T) {
	now := time.Unix(0, 42)
	require.Equal(t, "summit-photo-42", PublicID("summit photo.jpg", now))
	require.Equal(t, "upload-42", PublicID("---.png", now))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
