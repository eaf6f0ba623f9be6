package liblib

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"imageservice/internal/domain"
	"imageservice/internal/providers"
)

var testDescriptor = providers.Descriptor{
	Name:   Name,
	Models: []string{ModelStar3T2I, ModelStar3I2I, ModelCustom},
}

func decodeBody(t require.TestingT, req *providers.NormalizedRequest) map[string]any {
	raw, err := json.Marshal(req.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestNormalizeStar3TextToImage(t *testing.T) {
	req, err := normalize(testDescriptor, ModelStar3T2I, map[string]any{"prompt": "a lighthouse at dusk"})
	require.NoError(t, err)

	assert.Equal(t, text2imgUltraEndpoint, req.Endpoint)
	body := decodeBody(t, req)
	assert.Equal(t, templateStar3T2I, body["templateUuid"])
	assert.Equal(t, map[string]any{
		"prompt":      "a lighthouse at dusk",
		"aspectRatio": "portrait",
		"imgCount":    float64(1),
	}, body["generateParams"])
	assert.Empty(t, req.Ignored)

	assert.Equal(t, "a lighthouse at dusk", req.Summary.Prompt)
	assert.Nil(t, req.Summary.NegativePrompt)
	assert.Equal(t, 768, req.Summary.Width)
	assert.Equal(t, 1024, req.Summary.Height)
}

func TestNormalizeStar3AspectRatioSkippedForImageSize(t *testing.T) {
	req, err := normalize(testDescriptor, ModelStar3T2I, map[string]any{
		"prompt":         "p",
		"generateParams": map[string]any{"imageSize": map[string]any{"width": 1024, "height": 1536}},
	})
	require.NoError(t, err)

	gp := decodeBody(t, req)["generateParams"].(map[string]any)
	assert.NotContains(t, gp, "aspectRatio")
	assert.Equal(t, 1024, req.Summary.Width)
	assert.Equal(t, 1536, req.Summary.Height)
}

func TestNormalizeKeepsCallerGenerateParams(t *testing.T) {
	caller := map[string]any{"prompt": "inner prompt", "imgCount": 3, "negativePrompt": "blur"}
	req, err := normalize(testDescriptor, ModelStar3T2I, map[string]any{
		"prompt":         "outer prompt",
		"generateParams": caller,
		"aspectRatio":    "landscape",
		"style":          "anime",
	})
	require.NoError(t, err)

	gp := decodeBody(t, req)["generateParams"].(map[string]any)
	assert.Equal(t, "inner prompt", gp["prompt"])
	assert.Equal(t, float64(3), gp["imgCount"])
	assert.Equal(t, "portrait", gp["aspectRatio"], "top-level aspectRatio is not lifted")
	assert.Equal(t, []string{"aspectRatio", "style"}, req.Ignored)

	require.NotNil(t, req.Summary.NegativePrompt)
	assert.Equal(t, "blur", *req.Summary.NegativePrompt)
	assert.Equal(t, "inner prompt", req.Summary.Prompt)
	assert.Len(t, caller, 3, "caller map must not be mutated")
}

func TestNormalizeStar3ImageToImage(t *testing.T) {
	req, err := normalize(testDescriptor, ModelStar3I2I, map[string]any{
		"prompt":      "make it snowy",
		"sourceImage": "https://example.com/src.png",
	})
	require.NoError(t, err)

	assert.Equal(t, img2imgUltraEndpoint, req.Endpoint)
	body := decodeBody(t, req)
	assert.Equal(t, templateStar3I2I, body["templateUuid"])
	gp := body["generateParams"].(map[string]any)
	assert.Equal(t, "https://example.com/src.png", gp["sourceImage"])
	assert.Equal(t, float64(768), gp["width"])
	assert.Equal(t, float64(1024), gp["height"])
	assert.Equal(t, float64(1), gp["imgCount"])

	_, err = normalize(testDescriptor, ModelStar3I2I, map[string]any{"prompt": "p"})
	require.Error(t, err)
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "sourceImage", de.Key)
	assert.True(t, errors.Is(err, domain.ErrMissingParameter))
}

func TestNormalizeCustomTemplates(t *testing.T) {
	cases := []struct {
		name         string
		params       map[string]any
		wantTemplate string
		wantEndpoint string
	}{
		{
			name:         "xl text to image",
			params:       map[string]any{"checkPointId": "ckpt", "prompt": "p"},
			wantTemplate: templateXLT2I,
			wantEndpoint: text2imgEndpoint,
		},
		{
			name:         "f1 text to image",
			params:       map[string]any{"checkPointId": "ckpt", "prompt": "p", "baseModelType": "F.1"},
			wantTemplate: templateF1T2I,
			wantEndpoint: text2imgEndpoint,
		},
		{
			name:         "xl image to image",
			params:       map[string]any{"checkPointId": "ckpt", "prompt": "p", "generateParams": map[string]any{"sourceImage": "s"}},
			wantTemplate: templateXLI2I,
			wantEndpoint: img2imgEndpoint,
		},
		{
			name:         "f1 image to image from top level source",
			params:       map[string]any{"checkPointId": "ckpt", "prompt": "p", "sourceImage": "s", "baseModelType": "f1"},
			wantTemplate: templateF1I2I,
			wantEndpoint: img2imgEndpoint,
		},
		{
			name:         "explicit template wins",
			params:       map[string]any{"checkPointId": "ckpt", "prompt": "p", "templateUuid": "custom-template"},
			wantTemplate: "custom-template",
			wantEndpoint: text2imgEndpoint,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := normalize(testDescriptor, ModelCustom, tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.wantEndpoint, req.Endpoint)
			assert.Equal(t, tc.wantTemplate, decodeBody(t, req)["templateUuid"])
			assert.Empty(t, req.Ignored)
		})
	}
}

func TestNormalizeCustomDefaults(t *testing.T) {
	req, err := normalize(testDescriptor, ModelCustom, map[string]any{
		"checkPointId":   "ckpt-1",
		"prompt":         "p",
		"generateParams": map[string]any{"steps": 30},
	})
	require.NoError(t, err)

	gp := decodeBody(t, req)["generateParams"].(map[string]any)
	assert.Equal(t, map[string]any{
		"checkPointId": "ckpt-1",
		"prompt":       "p",
		"sampler":      float64(15),
		"steps":        float64(30),
		"cfgScale":     float64(7),
		"width":        float64(768),
		"height":       float64(1024),
		"imgCount":     float64(1),
		"seed":         float64(-1),
	}, gp)

	_, err = normalize(testDescriptor, ModelCustom, map[string]any{"prompt": "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingParameter))
}

func TestNormalizeRejectsUnknownAndUnlistedModels(t *testing.T) {
	_, err := normalize(testDescriptor, "star-4", map[string]any{"prompt": "p"})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedModel))

	restricted := providers.Descriptor{Name: Name, Models: []string{ModelStar3T2I}}
	_, err = normalize(restricted, ModelCustom, map[string]any{"prompt": "p", "checkPointId": "c"})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedModel))
}

func TestNormalizeRejectsMalformedGenerateParams(t *testing.T) {
	_, err := normalize(testDescriptor, ModelStar3T2I, map[string]any{"prompt": "p", "generateParams": "oops"})
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestNormalizeVariantProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		model := rapid.SampledFrom([]string{ModelStar3T2I, ModelStar3I2I, ModelCustom}).Draw(t, "model")
		params := map[string]any{}
		for _, key := range variants[model].required {
			params[key] = rapid.StringN(1, 16, -1).Draw(t, key)
		}
		if rapid.Bool().Draw(t, "withExtra") {
			params["unrelated"] = rapid.Int().Draw(t, "unrelated")
		}

		first, err := normalize(testDescriptor, model, params)
		if err != nil {
			t.Fatalf("complete params rejected: %v", err)
		}
		second, err := normalize(testDescriptor, model, params)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		a, _ := json.Marshal(first.Body)
		b, _ := json.Marshal(second.Body)
		if string(a) != string(b) {
			t.Fatalf("normalization is not deterministic:\n%s\n%s", a, b)
		}
		if _, ok := params["unrelated"]; ok && (len(first.Ignored) != 1 || first.Ignored[0] != "unrelated") {
			t.Fatalf("ignored = %v", first.Ignored)
		}

		missing := rapid.SampledFrom(variants[model].required).Draw(t, "missing")
		delete(params, missing)
		if _, err := normalize(testDescriptor, model, params); !errors.Is(err, domain.ErrMissingParameter) {
			t.Fatalf("missing %q accepted: %v", missing, err)
		}
	})
}
