//go:build onnx

package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"SOTAWatch/internal/config"
)

const (
	onnxSeqLen = 128
	clsToken   = 101
	sepToken   = 102
	unkToken   = 100
)

// ONNX runs a local sentence-transformer (all-MiniLM-L6-v2 layout) through
// ONNX Runtime and mean-pools the last hidden state.
type ONNX struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	vocab   map[string]int
	dims    int
}

// NewONNX loads the model and tokenizer described by cfg.
func NewONNX(cfg config.EmbeddingConfig) (Model, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("embedding.modelPath is required for the onnx backend")
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	vocab, err := loadVocab(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNX{session: session, vocab: vocab, dims: dims}, nil
}

// Embed tokenizes text, runs inference and returns the pooled unit vector.
func (o *ONNX) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := o.tokenize(text)
	if len(tokens) > onnxSeqLen-2 {
		tokens = tokens[:onnxSeqLen-2]
	}

	inputIDs := make([]int64, onnxSeqLen)
	mask := make([]int64, onnxSeqLen)
	typeIDs := make([]int64, onnxSeqLen)

	inputIDs[0], mask[0] = clsToken, 1
	for i, tok := range tokens {
		inputIDs[i+1], mask[i+1] = tok, 1
	}
	inputIDs[len(tokens)+1], mask[len(tokens)+1] = sepToken, 1

	shape := ort.NewShape(1, onnxSeqLen)
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	o.mu.Lock()
	err = o.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs)
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected onnx output type")
	}
	data, outShape := tensor.GetData(), tensor.GetShape()

	vec := make([]float32, o.dims)
	switch len(outShape) {
	case 2:
		if len(data) < o.dims {
			return nil, fmt.Errorf("onnx output has %d values, want %d", len(data), o.dims)
		}
		copy(vec, data[:o.dims])
	case 3:
		if outShape[2] != int64(o.dims) {
			return nil, fmt.Errorf("onnx hidden size %d, want %d", outShape[2], o.dims)
		}
		var attended float32
		for i := 0; i < int(outShape[1]); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			offset := i * o.dims
			for j := 0; j < o.dims; j++ {
				vec[j] += data[offset+j]
			}
		}
		for j := range vec {
			vec[j] /= attended
		}
	default:
		return nil, fmt.Errorf("unexpected onnx output shape %v", outShape)
	}

	return normalize(vec), nil
}

// Close releases the session.
func (o *ONNX) Close() error {
	return o.session.Destroy()
}

func loadVocab(path string) (map[string]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tokenizer struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(raw, &tokenizer); err != nil {
		return nil, err
	}
	return tokenizer.Model.Vocab, nil
}

// tokenize is a greedy longest-prefix WordPiece pass over lower-cased words.
func (o *ONNX) tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		if id, ok := o.vocab[word]; ok {
			ids = append(ids, int64(id))
			continue
		}
		for start := 0; start < len(word); {
			end, found := len(word), false
			for ; end > start; end-- {
				piece := word[start:end]
				if start > 0 {
					piece = "##" + piece
				}
				if id, ok := o.vocab[piece]; ok {
					ids = append(ids, int64(id))
					found = true
					break
				}
			}
			if !found {
				ids = append(ids, unkToken)
				start++
				continue
			}
			start = end
		}
	}
	return ids
}
