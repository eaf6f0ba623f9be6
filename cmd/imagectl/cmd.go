package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"imageservice/internal/bootstrap"
	"imageservice/internal/infra"
	"imageservice/internal/middleware"
	"imageservice/internal/service"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "imagectl",
		Short: "Run image generations against the configured vendors",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}
	rootCmd.AddCommand(newGenerateCmd(), newLocateCmd(), newProvidersCmd(), newTokenCmd())
	return rootCmd
}

func loadGenerator() (*service.Generator, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.NewLogger(cfg.AppEnv)
	return bootstrap.NewGenerator(cfg, &logger, nil)
}

func newGenerateCmd() *cobra.Command {
	var (
		paramsJSON string
		paramArgs  []string
	)
	cmd := &cobra.Command{
		Use:   "generate PROVIDER MODEL",
		Short: "Submit a job, wait for it and download the images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(paramsJSON, paramArgs)
			if err != nil {
				return err
			}
			gen, err := loadGenerator()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := gen.Generate(ctx, args[0], args[1], params)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&paramsJSON, "params", "", "request parameters as a JSON object")
	cmd.Flags().StringArrayVarP(&paramArgs, "param", "p", nil, "single parameter as key=value, repeatable")
	return cmd
}

func newLocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate FILE_NAME",
		Short: "Print the local path of a downloaded image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := loadGenerator()
			if err != nil {
				return err
			}
			path, err := gen.LocateArtifact(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and their models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := loadGenerator()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range gen.Providers() {
				fmt.Fprintf(out, "%s\t%s\n", d.Name, strings.Join(d.Models, ","))
			}
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token SUBJECT",
		Short: "Sign an API bearer token with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			token, err := middleware.SignToken(cfg.JWTSecret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// parseParams merges a JSON object with key=value pairs; pairs win. Values
// that parse as JSON (numbers, booleans, objects) keep their type, anything
// else is taken as a string.
func parseParams(raw string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("--params: %w", err)
		}
		if params == nil {
			return nil, fmt.Errorf("--params: expected a JSON object")
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--param %q: expected key=value", pair)
		}
		params[key] = parseValue(value)
	}
	return params, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil && v != nil {
		return v
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
