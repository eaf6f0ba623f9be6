package service

import (
	"fmt"

	"imageservice/internal/infra"
	"imageservice/internal/providers"
	"imageservice/internal/providers/dashscope"
	"imageservice/internal/providers/liblib"
)

// BuildRegistry constructs the provider registry from configuration. It is
// called once at process start; the result is read-only afterwards.
func BuildRegistry(cfg *infra.Config, logger *infra.Logger) (*providers.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("service: config is required")
	}
	reg := providers.NewRegistry(logger)

	aliyun := dashscope.NewClient(dashscope.Options{
		APIKey:        cfg.AliyunAPIKey,
		BaseURL:       cfg.AliyunAPIURL,
		SubmitTimeout: cfg.SubmitTimeout,
		PollTimeout:   cfg.PollTimeout,
		Logger:        logger,
	})
	if err := reg.Register(providers.Descriptor{
		Name:   dashscope.Name,
		Models: cfg.SupportedModels(infra.ProviderAliyun),
	}, dashscope.New(aliyun)); err != nil {
		return nil, err
	}

	liblibClient := liblib.NewClient(liblib.Options{
		AccessKey:     cfg.LiblibAccessKey,
		SecretKey:     cfg.LiblibSecretKey,
		BaseURL:       cfg.LiblibAPIURL,
		SubmitTimeout: cfg.SubmitTimeout,
		PollTimeout:   cfg.PollTimeout,
		Logger:        logger,
	})
	if err := reg.Register(providers.Descriptor{
		Name:   liblib.Name,
		Models: cfg.SupportedModels(infra.ProviderLiblibAI),
	}, liblib.New(liblibClient)); err != nil {
		return nil, err
	}

	if !aliyun.HasCredentials() {
		infra.OrNop(logger).Warn().Str("provider", dashscope.Name).Msg("ALIYUN_API_KEY not set, submissions will fail")
	}
	if !liblibClient.HasCredentials() {
		infra.OrNop(logger).Warn().Str("provider", liblib.Name).Msg("LIBLIBAI keys not set, submissions will fail")
	}
	return reg, nil
}
