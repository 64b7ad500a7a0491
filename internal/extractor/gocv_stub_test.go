//go:build !gocv

package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_GoCVUnavailable(t *testing.T) {
	_, err := New(DecoderGoCV, nil)
	assert.ErrorContains(t, err, "-tags gocv")
}
