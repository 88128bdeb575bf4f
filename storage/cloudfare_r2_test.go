package storage

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	base, err := url.Parse("https://cdn.example.com/arena/")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/arena/brackets/a.json", PublicURL(base, "brackets/a.json"))
	assert.Equal(t, "https://cdn.example.com/arena/brackets/a.json", PublicURL(base, "/brackets/a.json"))
}

func TestNewCloudflareR2UploaderRequiresConfig(t *testing.T) {
	_, err := NewCloudflareR2Uploader(context.Background(), CloudflareR2UploaderConfig{AccountID: "acc"})
	assert.ErrorIs(t, err, ErrR2NotConfigured)
}

func TestNewCloudflareR2UploaderPublicURL(t *testing.T) {
	u, err := NewCloudflareR2Uploader(context.Background(), CloudflareR2UploaderConfig{
		AccountID:       "acc",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "brackets",
		PublicBaseURL:   "https://cdn.example.com/arena",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/arena/t/1.json", u.GetPublicURL("t/1.json"))
	assert.Equal(t, "", u.GetPublicURL(""))
}
