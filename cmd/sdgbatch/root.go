package main

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/sdgindex/internal/config"
	"github.com/JaimeStill/sdgindex/pkg/middleware"
)

const (
	defaultResultsPath = ".sdgbatch/results.json"
	envToken           = "SDG_TOKEN"
)

type commandContext struct {
	resultsPath string
	token       string
	verbose     bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.configErr = err
			return
		}
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
}

// privileged reports whether the operator token carries the admin role. The
// token comes from --token or SDG_TOKEN; without one the operator is unprivileged.
func (c *commandContext) privileged(cfg *config.Config) (bool, error) {
	token := c.token
	if token == "" {
		token = os.Getenv(envToken)
	}
	if token == "" {
		return false, nil
	}
	claims, err := middleware.ParseClaims(&cfg.API.Auth, token)
	if err != nil {
		return false, err
	}
	return claims.Privileged(cfg.API.Auth.AdminRole), nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "sdgbatch",
		Short:         "Bulk SDG classification of thesis abstracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx.stdin = cmd.InOrStdin()
			ctx.stdout = cmd.OutOrStdout()
			ctx.stderr = cmd.ErrOrStderr()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.resultsPath, "results", defaultResultsPath, "Path of the batch results file")
	rootCmd.PersistentFlags().StringVar(&ctx.token, "token", "", "Operator bearer token (env SDG_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newResultsCommand(ctx))
	rootCmd.AddCommand(newEditCommand(ctx))
	rootCmd.AddCommand(newSaveCommand(ctx))
	rootCmd.AddCommand(newCheckpointCommand(ctx))

	return rootCmd
}
