package dashscope

import (
	"strconv"
	"strings"

	"imageservice/internal/providers"
)

const (
	defaultSize        = "1024*1024"
	defaultStyle       = "<auto>"
	defaultRefStrength = 1.0
	defaultRefMode     = "repaint"
	minImages          = 1
	maxImages          = 4
	synthesisEndpoint  = "/services/aigc/text2image/image-synthesis"
)

// params is the structured core of a wanx request. Pointer fields record
// presence; anything else the caller sent lands in Extra and is forwarded.
type params struct {
	Prompt         *string        `mapstructure:"prompt"`
	NegativePrompt *string        `mapstructure:"negative_prompt"`
	Size           *string        `mapstructure:"size"`
	N              *int           `mapstructure:"n"`
	Style          *string        `mapstructure:"style"`
	Seed           *int64         `mapstructure:"seed"`
	RefImg         *string        `mapstructure:"ref_img"`
	RefStrength    *float64       `mapstructure:"ref_strength"`
	RefMode        *string        `mapstructure:"ref_mode"`
	Model          any            `mapstructure:"model"`
	Extra          map[string]any `mapstructure:",remain"`
}

type synthesisRequest struct {
	Model      string         `json:"model"`
	Input      synthesisInput `json:"input"`
	Parameters map[string]any `json:"parameters"`
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	RefImage       string `json:"ref_image,omitempty"`
}

// normalize validates the caller bag and builds the async synthesis body.
// Unrecognized keys are merged flat into parameters; recognized keys win on
// collision.
func normalize(desc providers.Descriptor, model string, raw map[string]any) (*providers.NormalizedRequest, error) {
	if !desc.Supports(model) {
		return nil, providers.UnsupportedModel(desc.Name, model)
	}
	var p params
	if err := providers.DecodeParams(desc.Name, raw, &p); err != nil {
		return nil, err
	}
	if p.Prompt == nil {
		return nil, providers.MissingParameter(desc.Name, model, "prompt")
	}

	size := defaultSize
	if p.Size != nil {
		size = *p.Size
	}
	n := minImages
	if p.N != nil {
		n = min(max(*p.N, minImages), maxImages)
	}
	negative := ""
	if p.NegativePrompt != nil {
		negative = *p.NegativePrompt
	}
	style := defaultStyle
	if p.Style != nil {
		style = *p.Style
	}

	parameters := make(map[string]any, len(p.Extra)+6)
	for k, v := range p.Extra {
		parameters[k] = v
	}
	parameters["size"] = size
	parameters["n"] = n
	parameters["style"] = style
	if p.Seed != nil {
		parameters["seed"] = *p.Seed
	}
	if p.RefStrength != nil {
		parameters["ref_strength"] = *p.RefStrength
	}
	if p.RefMode != nil {
		parameters["ref_mode"] = *p.RefMode
	}

	input := synthesisInput{Prompt: *p.Prompt, NegativePrompt: negative}
	if p.RefImg != nil {
		input.RefImage = *p.RefImg
		if p.RefStrength == nil {
			parameters["ref_strength"] = defaultRefStrength
		}
		if p.RefMode == nil {
			parameters["ref_mode"] = defaultRefMode
		}
	}

	return &providers.NormalizedRequest{
		Provider: desc.Name,
		Model:    model,
		Endpoint: synthesisEndpoint,
		Body: synthesisRequest{
			Model:      model,
			Input:      input,
			Parameters: parameters,
		},
		Summary: summarize(*p.Prompt, negative, size),
	}, nil
}

// summarize splits a "W*H" size into dimensions, keeping the raw string when
// it does not parse.
func summarize(prompt, negative, size string) providers.RequestSummary {
	summary := providers.RequestSummary{Prompt: prompt, NegativePrompt: &negative}
	if size == "" {
		summary.Width, summary.Height = 1024, 1024
		return summary
	}
	parts := strings.Split(size, "*")
	if len(parts) == 2 {
		w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
		h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errW == nil && errH == nil {
			summary.Width, summary.Height = w, h
			return summary
		}
	}
	summary.Size = size
	return summary
}
