// Package vision runs an optional on-device ImageNet classifier over uploads.
// Its top-k guesses are attached to detailed classifications as a hint next
// to the remote vision model's answer.
package vision

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"gopherai-insect/internal/model"
)

var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

const (
	width  = 224
	height = 224

	// ImageNet-1k indices 300 (tiger beetle) through 326 (lycaenid) are insects.
	firstInsectIndex = 300
	lastInsectIndex  = 326
)

// Classifier wraps a MobileNetV2 ONNX session. The model and labels load on
// first use; a failed load is retried on the next call.
type Classifier struct {
	mu sync.Mutex

	modelPath   string
	labelsPath  string
	topK        int
	libPath     string
	insectsOnly bool

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	labels  []string
	inited  bool
}

func NewClassifier(modelPath, labelsPath, onnxLibPath string, topK int, insectsOnly bool) *Classifier {
	if topK <= 0 {
		topK = 5
	}
	return &Classifier{
		modelPath:   modelPath,
		labelsPath:  labelsPath,
		topK:        topK,
		libPath:     onnxLibPath,
		insectsOnly: insectsOnly,
	}
}

// ensureLoaded must be called with c.mu held.
func (c *Classifier) ensureLoaded() error {
	if c.inited {
		return nil
	}
	if c.libPath != "" {
		ort.SetSharedLibraryPath(c.libPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx init environment: %w", err)
		}
	}

	labels, err := loadLabels(c.labelsPath)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(c.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	input, err := ort.NewEmptyTensor[float32](inputs[0].Dimensions)
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](outputs[0].Dimensions)
	if err != nil {
		_ = input.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(c.modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		_ = output.Destroy()
		_ = input.Destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}

	c.labels = labels
	c.input, c.output, c.session = input, output, session
	c.inited = true
	return nil
}

func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		labels = append(labels, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// Classify returns the top-k predictions with softmax probabilities.
func (c *Classifier) Classify(imageData []byte) ([]model.LabelScore, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	tensor := preprocess(img)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}

	inData := c.input.GetData()
	if len(inData) < len(tensor) {
		return nil, fmt.Errorf("input tensor size %d < preprocessed %d", len(inData), len(tensor))
	}
	copy(inData, tensor)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	probs := softmax(c.output.GetData())
	return topK(probs, c.labels, c.topK, c.insectsOnly), nil
}

// Loaded reports whether the session has been created.
func (c *Classifier) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inited
}

func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inited {
		return nil
	}
	var firstErr error
	for _, destroy := range []func() error{c.session.Destroy, c.input.Destroy, c.output.Destroy} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.inited = false
	return firstErr
}

func IsInsectIndex(idx int) bool {
	return idx >= firstInsectIndex && idx <= lastInsectIndex
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func topK(scores []float32, labels []string, k int, insectsOnly bool) []model.LabelScore {
	idx := make([]int, 0, len(scores))
	for i := range scores {
		if insectsOnly && !IsInsectIndex(i) {
			continue
		}
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k > len(idx) {
		k = len(idx)
	}

	out := make([]model.LabelScore, 0, k)
	for _, i := range idx[:k] {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		out = append(out, model.LabelScore{Label: label, Index: i, Score: scores[i]})
	}
	return out
}

// preprocess scales img to 224x224 and lays it out as normalised NCHW floats.
func preprocess(img image.Image) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([]float32, 3*height*width)
	const size = width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			px := dst.RGBAAt(x, y)
			out[i] = (float32(px.R)/255 - imagenetMean[0]) / imagenetStd[0]
			out[size+i] = (float32(px.G)/255 - imagenetMean[1]) / imagenetStd[1]
			out[2*size+i] = (float32(px.B)/255 - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return out
}
