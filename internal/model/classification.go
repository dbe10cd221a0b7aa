package model

import "time"

// ClassificationRecord is the event emitted after every successful
// classification and appended to the history file by the record worker.
type ClassificationRecord struct {
	ID             string            `json:"id"`
	Endpoint       string            `json:"endpoint"`
	ImageName      string            `json:"image_name"`
	ImageSHA256    string            `json:"image_sha256"`
	PredictedClass string            `json:"predicted_class"`
	NameEN         string            `json:"name_en"`
	Fields         map[string]string `json:"fields"`
	MissingFields  []string          `json:"missing_fields,omitempty"`
	ModelVersion   string            `json:"model_version"`
	Cached         bool              `json:"cached"`
	CreatedAt      time.Time         `json:"created_at"`
}

// CachedClassification is the raw model answer kept in the cache, keyed by
// image digest. Fields are re-extracted on every hit.
type CachedClassification struct {
	RawText      string    `json:"raw_text"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

// LabelScore is one local pre-classifier prediction.
type LabelScore struct {
	Label string  `json:"label"`
	Index int     `json:"index"`
	Score float32 `json:"score"`
}
