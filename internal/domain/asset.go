package domain

import "time"

// ImageArtifact is a generated image after materialization. LocalPath is
// empty when the download failed; the rest of the job result stays valid.
type ImageArtifact struct {
	Index       int    `json:"index" bson:"index"`
	URL         string `json:"url" bson:"url"`
	LocalPath   string `json:"local_path" bson:"local_path"`
	FileName    string `json:"file_name,omitempty" bson:"file_name,omitempty"`
	Seed        *int64 `json:"seed,omitempty" bson:"seed,omitempty"`
	AuditStatus *int   `json:"audit_status,omitempty" bson:"audit_status,omitempty"`
}

// Downloaded reports whether the artifact was persisted locally.
func (a ImageArtifact) Downloaded() bool {
	return a.LocalPath != ""
}

// Accounting holds vendor billing fields.
type Accounting struct {
	PointsCost     float64 `json:"points_cost" bson:"points_cost"`
	AccountBalance float64 `json:"account_balance" bson:"account_balance"`
}

// GenerationResult is the provider independent output of one job.
type GenerationResult struct {
	ID             string          `json:"id" bson:"id"`
	Provider       string          `json:"provider" bson:"provider"`
	Model          string          `json:"model" bson:"model"`
	CreatedAt      time.Time       `json:"created" bson:"created"`
	Prompt         string          `json:"prompt" bson:"prompt"`
	NegativePrompt *string         `json:"negative_prompt,omitempty" bson:"negative_prompt,omitempty"`
	Width          int             `json:"width,omitempty" bson:"width,omitempty"`
	Height         int             `json:"height,omitempty" bson:"height,omitempty"`
	Size           string          `json:"size,omitempty" bson:"size,omitempty"`
	Images         []ImageArtifact `json:"images" bson:"images"`
	Accounting     *Accounting     `json:"accounting,omitempty" bson:"accounting,omitempty"`
}

// MissingImages returns the indexes of artifacts that could not be downloaded.
func (r *GenerationResult) MissingImages() []int {
	if r == nil {
		return nil
	}
	var missing []int
	for _, img := range r.Images {
		if !img.Downloaded() {
			missing = append(missing, img.Index)
		}
	}
	return missing
}
