package providers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imageservice/internal/domain"
)

type fakeProvider struct {
	desc Descriptor
	tag  string
}

func (f *fakeProvider) Descriptor() Descriptor { return f.desc }

func (f *fakeProvider) Normalize(model string, _ map[string]any) (*NormalizedRequest, error) {
	return &NormalizedRequest{Provider: f.desc.Name, Model: model}, nil
}

func (f *fakeProvider) Submit(context.Context, *NormalizedRequest) (*domain.RemoteJob, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) Status(context.Context, *domain.RemoteJob) (*domain.StatusReport, error) {
	return nil, errors.New("not implemented")
}

func fakeFactory(tag string) Factory {
	return func(d Descriptor) Provider { return &fakeProvider{desc: d, tag: tag} }
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Descriptor{Name: "aliyun", Models: []string{"m1"}}, fakeFactory("a")))

	p, err := r.Resolve("aliyun")
	require.NoError(t, err)
	assert.Equal(t, "aliyun", p.Descriptor().Name)
	assert.True(t, p.Descriptor().Supports("m1"))
	assert.False(t, p.Descriptor().Supports("m2"))

	_, err = r.Resolve("midjourney")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderNotFound))
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Descriptor{Name: "liblibai"}, fakeFactory("first")))
	require.NoError(t, r.Register(Descriptor{Name: "liblibai"}, fakeFactory("second")))

	p, err := r.Resolve("liblibai")
	require.NoError(t, err)
	assert.Equal(t, "second", p.(*fakeProvider).tag)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRejectsInvalidRegistration(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.Register(Descriptor{}, fakeFactory("x")))
	assert.Error(t, r.Register(Descriptor{Name: "x"}, nil))
	assert.Error(t, r.Register(Descriptor{Name: "x"}, func(Descriptor) Provider { return nil }))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryViewsAreSortedCopies(t *testing.T) {
	r := NewRegistry(nil)
	models := []string{"m1"}
	require.NoError(t, r.Register(Descriptor{Name: "liblibai", Models: models}, fakeFactory("b")))
	require.NoError(t, r.Register(Descriptor{Name: "aliyun", Models: []string{"m2"}}, fakeFactory("a")))
	models[0] = "mutated"

	assert.Equal(t, []string{"aliyun", "liblibai"}, r.Names())

	descs := r.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "aliyun", descs[0].Name)
	assert.Equal(t, []string{"m1"}, descs[1].Models)

	descs[1].Models[0] = "changed"
	assert.Equal(t, []string{"m1"}, r.Descriptors()[1].Models)
}

func TestRegistryConcurrentReads(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Descriptor{Name: "aliyun"}, fakeFactory("a")))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve("aliyun"); err != nil {
				t.Errorf("resolve: %v", err)
			}
			_ = r.Names()
		}()
	}
	wg.Wait()
}

func TestDecodeParamsCoercesAndCollectsExtras(t *testing.T) {
	var out struct {
		N     *int           `mapstructure:"n"`
		Extra map[string]any `mapstructure:",remain"`
	}
	err := DecodeParams("aliyun", map[string]any{"n": "3", "watermark": true}, &out)
	require.NoError(t, err)
	require.NotNil(t, out.N)
	assert.Equal(t, 3, *out.N)
	assert.Equal(t, map[string]any{"watermark": true}, out.Extra)

	err = DecodeParams("aliyun", map[string]any{"n": "three"}, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}
