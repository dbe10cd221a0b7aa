package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"gopherai-insect/internal/ai"
	"gopherai-insect/internal/model"
)

const sampleAnswer = `안녕! 오늘의 곤충 친구를 소개할게!

🐛 곤충 이름: [무당벌레]
🐛 곤충 이름(영문): [Ladybug]
📚 곤충 종류: [딱정벌레]
✨ 특별한 모습: [빨간 등에 까만 점이 있어요]
🏡 어디에 살까: [풀밭과 정원]
🍽️ 무엇을 먹을까: [진딧물]
🎯 재미있는 점: [위험하면 노란 액체를 내요]
😊 친구가 되려면: [살살 손바닥에 올려 주세요]`

type fakeVision struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  int
	keys   []string
	mimes  []string
}

func (f *fakeVision) GenerateContent(_ context.Context, apiKey, _ string, img ai.InlineImage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, apiKey)
	f.mimes = append(f.mimes, img.MimeType)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeVision) Model() string { return "gemini-2.0-flash" }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]model.CachedClassification
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]model.CachedClassification)}
}

func (c *memoryCache) Get(_ context.Context, digest, modelName string) (*model.CachedClassification, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[modelName+":"+digest]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *memoryCache) Set(_ context.Context, digest, modelName string, v model.CachedClassification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[modelName+":"+digest] = v
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []model.ClassificationRecord
}

func (p *recordingPublisher) Publish(_ context.Context, rec model.ClassificationRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

type fakeLocal struct{}

func (fakeLocal) Classify([]byte) ([]model.LabelScore, error) {
	return []model.LabelScore{{Label: "ladybug", Index: 301, Score: 0.8}}, nil
}

func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}
