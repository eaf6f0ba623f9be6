package liblib

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"imageservice/internal/providers"
)

const (
	ModelStar3T2I = "star-3-alpha-t2i"
	ModelStar3I2I = "star-3-alpha-i2i"
	ModelCustom   = "liblib-custom"

	text2imgUltraEndpoint = "/api/generate/webui/text2img/ultra"
	img2imgUltraEndpoint  = "/api/generate/webui/img2img/ultra"
	text2imgEndpoint      = "/api/generate/webui/text2img"
	img2imgEndpoint       = "/api/generate/webui/img2img"
	statusEndpoint        = "/api/generate/webui/status"

	templateStar3T2I  = "5d7e67009b344550bc1aa6ccbfa1d7f4"
	templateStar3I2I  = "07e00af4fc464c7ab55ff906f8acf1b7"
	templateF1I2I     = "63b72710c9574457ba303d9d9b8df8bd"
	templateXLI2I     = "9c7d531dc75f476aa833b3d452b8f7ad"
	templateF1T2I     = "6f7c4652458d4802969f8d089cf5b91f"
	templateXLT2I     = "e10adc3949ba59abbe56e057f20f883e"
	defaultWidth      = 768
	defaultHeight     = 1024
	keyGenerateParams = "generateParams"
)

type paramDefault struct {
	key   string
	value any
	// skipIf suppresses the default when any of these keys is present.
	skipIf []string
}

// variant is one row of the model schema table.
type variant struct {
	required []string
	lift     []string
	consumes []string
	defaults []paramDefault
	template func(top map[string]any, gp map[string]any) string
	endpoint func(gp map[string]any) string
}

var variants = map[string]variant{
	ModelStar3T2I: {
		required: []string{"prompt"},
		lift:     []string{"prompt"},
		defaults: []paramDefault{
			{key: "aspectRatio", value: "portrait", skipIf: []string{"imageSize"}},
			{key: "imgCount", value: 1},
		},
		template: func(map[string]any, map[string]any) string { return templateStar3T2I },
		endpoint: func(map[string]any) string { return text2imgUltraEndpoint },
	},
	ModelStar3I2I: {
		required: []string{"prompt", "sourceImage"},
		lift:     []string{"prompt", "sourceImage"},
		defaults: []paramDefault{
			{key: "width", value: defaultWidth},
			{key: "height", value: defaultHeight},
			{key: "imgCount", value: 1},
		},
		template: func(map[string]any, map[string]any) string { return templateStar3I2I },
		endpoint: func(map[string]any) string { return img2imgUltraEndpoint },
	},
	ModelCustom: {
		required: []string{"checkPointId", "prompt"},
		lift:     []string{"checkPointId", "prompt", "sourceImage"},
		consumes: []string{"baseModelType"},
		defaults: []paramDefault{
			{key: "sampler", value: 15},
			{key: "steps", value: 20},
			{key: "cfgScale", value: 7},
			{key: "width", value: defaultWidth},
			{key: "height", value: defaultHeight},
			{key: "imgCount", value: 1},
			{key: "seed", value: -1},
		},
		template: customTemplate,
		endpoint: func(gp map[string]any) string {
			if _, ok := gp["sourceImage"]; ok {
				return img2imgEndpoint
			}
			return text2imgEndpoint
		},
	},
}

func customTemplate(top map[string]any, gp map[string]any) string {
	baseType := strings.ToLower(strings.TrimSpace(stringValue(top["baseModelType"])))
	isF1 := baseType == "f.1" || baseType == "f1"
	_, i2i := gp["sourceImage"]
	switch {
	case i2i && isF1:
		return templateF1I2I
	case i2i:
		return templateXLI2I
	case isF1:
		return templateF1T2I
	default:
		return templateXLT2I
	}
}

// request is the structured top level of a LiblibAI parameter bag.
type request struct {
	TemplateUUID   *string        `mapstructure:"templateUuid"`
	GenerateParams map[string]any `mapstructure:"generateParams"`
	Model          any            `mapstructure:"model"`
	Rest           map[string]any `mapstructure:",remain"`
}

type generateRequest struct {
	TemplateUUID   string         `json:"templateUuid"`
	GenerateParams map[string]any `json:"generateParams"`
}

// normalize applies the variant schema. Recognized keys are lifted into
// generateParams without overwriting caller-supplied entries there; other
// top-level keys are reported in Ignored.
func normalize(desc providers.Descriptor, model string, raw map[string]any) (*providers.NormalizedRequest, error) {
	v, known := variants[model]
	if !known || !desc.Supports(model) {
		return nil, providers.UnsupportedModel(desc.Name, model)
	}
	var req request
	if err := providers.DecodeParams(desc.Name, raw, &req); err != nil {
		return nil, err
	}
	for _, key := range v.required {
		if _, ok := req.Rest[key]; !ok {
			return nil, providers.MissingParameter(desc.Name, model, key)
		}
	}

	gp := maps.Clone(req.GenerateParams)
	if gp == nil {
		gp = make(map[string]any)
	}
	for _, key := range v.lift {
		if val, ok := req.Rest[key]; ok {
			if _, set := gp[key]; !set {
				gp[key] = val
			}
		}
	}
	for _, d := range v.defaults {
		if _, set := gp[d.key]; set || anyPresent(gp, d.skipIf) {
			continue
		}
		gp[d.key] = d.value
	}

	template := v.template(req.Rest, gp)
	if req.TemplateUUID != nil && *req.TemplateUUID != "" {
		template = *req.TemplateUUID
	}

	consumed := make(map[string]struct{}, len(v.lift)+len(v.consumes))
	for _, key := range append(append([]string{}, v.lift...), v.consumes...) {
		consumed[key] = struct{}{}
	}
	var ignored []string
	for _, key := range providers.SortedKeys(req.Rest) {
		if _, ok := consumed[key]; !ok {
			ignored = append(ignored, key)
		}
	}

	return &providers.NormalizedRequest{
		Provider: desc.Name,
		Model:    model,
		Endpoint: v.endpoint(gp),
		Body: generateRequest{
			TemplateUUID:   template,
			GenerateParams: gp,
		},
		Summary: summarize(gp),
		Ignored: ignored,
	}, nil
}

// summarize derives the result dimensions: explicit width and height, then an
// imageSize object, then the 768x1024 default.
func summarize(gp map[string]any) providers.RequestSummary {
	summary := providers.RequestSummary{Prompt: stringValue(gp["prompt"])}
	if neg, ok := gp["negativePrompt"]; ok {
		s := stringValue(neg)
		summary.NegativePrompt = &s
	}

	w, okW := intValue(gp["width"])
	h, okH := intValue(gp["height"])
	if okW && okH {
		summary.Width, summary.Height = w, h
		return summary
	}
	summary.Width, summary.Height = defaultWidth, defaultHeight
	if size, ok := gp["imageSize"].(map[string]any); ok {
		if w, ok := intValue(size["width"]); ok {
			summary.Width = w
		}
		if h, ok := intValue(size["height"]); ok {
			summary.Height = h
		}
	}
	return summary
}

func anyPresent(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float32:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}
