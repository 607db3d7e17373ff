// internal/storage/storage_test.go
package storage_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/railsim/formation/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestUploadMetadataFields(t *testing.T) {
	meta := storage.UploadMetadata{
		Name:       "formations_20260101_120000",
		Formations: 3,
		Cars:       11,
		Tag:        "nightly",
	}

	assert.Equal(t, "formations_20260101_120000", meta.Name)
	assert.Equal(t, 3, meta.Formations)
	assert.Equal(t, 11, meta.Cars)
	assert.Equal(t, "nightly", meta.Tag)
}

func TestErrUnsupportedWraps(t *testing.T) {
	err := fmt.Errorf("websocket load: %w", storage.ErrUnsupported)
	assert.True(t, errors.Is(err, storage.ErrUnsupported))
}
