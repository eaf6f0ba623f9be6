package providers

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"imageservice/internal/domain"
)

// DecodeParams decodes a loose caller parameter bag into a typed struct.
// Numeric strings and floats are coerced to the target field types; keys
// without a matching field are collected by a `mapstructure:",remain"` field
// when the target declares one.
func DecodeParams(provider string, params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("%s: build decoder: %w", provider, err)
	}
	if params == nil {
		params = map[string]any{}
	}
	if err := dec.Decode(params); err != nil {
		return &domain.Error{Kind: domain.ErrInvalidParameter, Provider: provider, Err: err}
	}
	return nil
}

// MissingParameter builds the error returned when a required key is absent.
func MissingParameter(provider, model, key string) error {
	return &domain.Error{Kind: domain.ErrMissingParameter, Provider: provider, Model: model, Key: key}
}

// UnsupportedModel builds the error returned for a model outside the
// provider's accepted list.
func UnsupportedModel(provider, model string) error {
	return &domain.Error{Kind: domain.ErrUnsupportedModel, Provider: provider, Model: model}
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
