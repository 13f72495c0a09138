//go:build !onnx

package embedding

import (
	"errors"

	"SOTAWatch/internal/config"
)

// NewONNX is unavailable unless the binary is built with -tags onnx.
func NewONNX(config.EmbeddingConfig) (Model, error) {
	return nil, errors.New("onnx backend requires building with -tags onnx")
}
