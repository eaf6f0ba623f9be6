package dashscope

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"imageservice/internal/domain"
	"imageservice/internal/providers"
)

var testDescriptor = providers.Descriptor{
	Name:   Name,
	Models: []string{"wanx2.1-t2i-turbo", "wanx2.1-t2i-plus"},
}

type fatalHelper interface {
	Helper()
	Fatalf(format string, args ...any)
}

func bodyMap(t fatalHelper, req *providers.NormalizedRequest) map[string]any {
	t.Helper()
	raw, err := json.Marshal(req.Body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	return out
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	req, err := normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{"prompt": "a cat"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.Endpoint != synthesisEndpoint {
		t.Fatalf("endpoint = %q", req.Endpoint)
	}
	body := bodyMap(t, req)
	if body["model"] != "wanx2.1-t2i-turbo" {
		t.Fatalf("model = %v", body["model"])
	}
	input := body["input"].(map[string]any)
	if input["prompt"] != "a cat" {
		t.Fatalf("prompt = %v", input["prompt"])
	}
	if _, ok := input["negative_prompt"]; ok {
		t.Fatalf("empty negative_prompt should be omitted from input")
	}
	if _, ok := input["ref_image"]; ok {
		t.Fatalf("ref_image should be omitted without ref_img")
	}
	params := body["parameters"].(map[string]any)
	want := map[string]any{"size": "1024*1024", "n": float64(1), "style": "<auto>"}
	if !reflect.DeepEqual(params, want) {
		t.Fatalf("parameters = %#v, want %#v", params, want)
	}
	if req.Summary.Width != 1024 || req.Summary.Height != 1024 || req.Summary.Size != "" {
		t.Fatalf("summary dims = %dx%d size %q", req.Summary.Width, req.Summary.Height, req.Summary.Size)
	}
	if req.Summary.NegativePrompt == nil || *req.Summary.NegativePrompt != "" {
		t.Fatalf("summary negative prompt should default to empty string")
	}
}

func TestNormalizeClampsCountAndCoercesSeed(t *testing.T) {
	cases := map[string]struct {
		n    any
		want float64
	}{
		"above range": {n: 9, want: 4},
		"below range": {n: 0, want: 1},
		"string":      {n: "3", want: 3},
		"float":       {n: 2.0, want: 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := normalize(testDescriptor, "wanx2.1-t2i-plus", map[string]any{
				"prompt": "p",
				"n":      tc.n,
				"seed":   "42",
			})
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			params := bodyMap(t, req)["parameters"].(map[string]any)
			if params["n"] != tc.want {
				t.Fatalf("n = %v, want %v", params["n"], tc.want)
			}
			if params["seed"] != float64(42) {
				t.Fatalf("seed = %#v, want 42", params["seed"])
			}
		})
	}
}

func TestNormalizeReferenceImageDefaults(t *testing.T) {
	req, err := normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{
		"prompt":          "p",
		"negative_prompt": "blurry",
		"ref_img":         "https://example.com/ref.png",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	body := bodyMap(t, req)
	input := body["input"].(map[string]any)
	if input["ref_image"] != "https://example.com/ref.png" {
		t.Fatalf("ref_image = %v", input["ref_image"])
	}
	if input["negative_prompt"] != "blurry" {
		t.Fatalf("negative_prompt = %v", input["negative_prompt"])
	}
	params := body["parameters"].(map[string]any)
	if params["ref_strength"] != 1.0 || params["ref_mode"] != "repaint" {
		t.Fatalf("ref defaults = %v / %v", params["ref_strength"], params["ref_mode"])
	}
	if _, ok := params["ref_img"]; ok {
		t.Fatalf("ref_img must not be forwarded as a parameter")
	}

	req, err = normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{
		"prompt":       "p",
		"ref_img":      "https://example.com/ref.png",
		"ref_strength": 0.4,
		"ref_mode":     "refonly",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	params = bodyMap(t, req)["parameters"].(map[string]any)
	if params["ref_strength"] != 0.4 || params["ref_mode"] != "refonly" {
		t.Fatalf("explicit ref values overwritten: %v / %v", params["ref_strength"], params["ref_mode"])
	}
}

func TestNormalizeForwardsUnknownKeysFlat(t *testing.T) {
	req, err := normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{
		"prompt":        "p",
		"watermark":     false,
		"prompt_extend": true,
		"model":         "ignored-model",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	body := bodyMap(t, req)
	if body["model"] != "wanx2.1-t2i-turbo" {
		t.Fatalf("caller model key must not override the selected model")
	}
	params := body["parameters"].(map[string]any)
	if params["watermark"] != false || params["prompt_extend"] != true {
		t.Fatalf("extras not forwarded: %#v", params)
	}
	if _, ok := params["model"]; ok {
		t.Fatalf("model must not be forwarded as a parameter")
	}
	if len(req.Ignored) != 0 {
		t.Fatalf("flat merge ignores nothing, got %v", req.Ignored)
	}
}

func TestNormalizeSizeSummary(t *testing.T) {
	req, err := normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{"prompt": "p", "size": "720*1280"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.Summary.Width != 720 || req.Summary.Height != 1280 {
		t.Fatalf("summary = %+v", req.Summary)
	}

	req, err = normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{"prompt": "p", "size": "large"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.Summary.Size != "large" || req.Summary.Width != 0 {
		t.Fatalf("unparseable size should be kept raw: %+v", req.Summary)
	}
}

func TestNormalizeErrors(t *testing.T) {
	_, err := normalize(testDescriptor, "wanx-v9", map[string]any{"prompt": "p"})
	if !errors.Is(err, domain.ErrUnsupportedModel) {
		t.Fatalf("err = %v, want unsupported model", err)
	}

	_, err = normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{"size": "1024*1024"})
	if !errors.Is(err, domain.ErrMissingParameter) {
		t.Fatalf("err = %v, want missing parameter", err)
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Key != "prompt" {
		t.Fatalf("missing parameter error should name prompt: %v", err)
	}

	_, err = normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{"prompt": "p", "n": "many"})
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("err = %v, want invalid parameter", err)
	}
}

func TestNormalizeEmptyPromptIsPresent(t *testing.T) {
	if _, err := normalize(testDescriptor, "wanx2.1-t2i-turbo", map[string]any{"prompt": ""}); err != nil {
		t.Fatalf("empty prompt is present and must pass validation: %v", err)
	}
}

func TestNormalizeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prompt := rapid.String().Draw(t, "prompt")
		n := rapid.IntRange(-20, 20).Draw(t, "n")
		params := map[string]any{"prompt": prompt, "n": n}

		first, err := normalize(testDescriptor, "wanx2.1-t2i-turbo", params)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		second, err := normalize(testDescriptor, "wanx2.1-t2i-turbo", params)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		a, b := bodyMap(t, first), bodyMap(t, second)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("normalization is not deterministic: %v vs %v", a, b)
		}
		got := a["parameters"].(map[string]any)["n"].(float64)
		if got < minImages || got > maxImages {
			t.Fatalf("n = %v escaped [%d,%d]", got, minImages, maxImages)
		}

		delete(params, "prompt")
		if _, err := normalize(testDescriptor, "wanx2.1-t2i-turbo", params); !errors.Is(err, domain.ErrMissingParameter) {
			t.Fatalf("missing prompt accepted: %v", err)
		}
	})
}
