package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jkim999/primary-care-consultant/internal/consultation"
	"github.com/jkim999/primary-care-consultant/internal/logger"
	"github.com/jkim999/primary-care-consultant/internal/policy"
	"github.com/jkim999/primary-care-consultant/internal/settings"
	stores "github.com/jkim999/primary-care-consultant/internal/stores/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errSelfTestFailed = errors.New("self-test failed")

type options struct {
	apiKey      string
	environment string
	model       string
	test        bool
	envFile     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}

	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	cmd := &cobra.Command{
		Use:           "commandline",
		Short:         "AI Primary Care Consultation System",
		Long:          "Interactive primary care consultation: history taking, triage and a patient friendly answer.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), opts, in, out)
			if err != nil && !errors.Is(err, errSelfTestFailed) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.apiKey, "api-key", "", "OpenAI API key (or set OPENAI_API_KEY)")
	flags.StringVar(&opts.environment, "environment", "", "configuration profile: development, production or test")
	flags.StringVar(&opts.model, "model", "", "model to use: "+strings.Join(settings.AvailableModels, ", "))
	flags.BoolVar(&opts.test, "test", false, "run the offline self-test instead of a consultation")
	flags.StringVar(&opts.envFile, "env-file", envFile, ".env file to load")

	return cmd
}

// loadSettings merges the env file, process environment and flags
func loadSettings(opts *options) (*settings.Settings, error) {
	config := utils.NewConfigFromEnv(opts.envFile)
	if opts.apiKey != "" {
		config.Set("OPENAI_API_KEY", opts.apiKey)
	}
	if opts.model != "" {
		config.Set("MODEL", opts.model)
	}

	if opts.environment != "" {
		if _, ok := settings.ParseEnvironment(opts.environment); !ok {
			return nil, fmt.Errorf("unknown environment %q (choose development, production or test)", opts.environment)
		}
	}

	return settings.Load(config, opts.environment), nil
}

func run(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat), nil)

	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return err
	}

	if opts.test {
		if err := cfg.ValidateOffline(); err != nil {
			return err
		}
		if !runSelfTest(ctx, cfg.Config, pol, newUI(out), log) {
			return errSelfTestFailed
		}
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w\nset it via --api-key or the OPENAI_API_KEY environment variable", err)
	}

	generator, err := agent.NewGenerator(cfg.Backend, cfg.GeneratorConfig())
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	store, err := stores.Open(cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to open consultation store: %w", err)
	}
	defer store.Close()

	orchestrator, err := consultation.New(generator, pol, cfg.Config, store, log)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"model":       cfg.Model,
		"store":       cfg.Store.Driver,
	}).Debug("commandline ready")

	return newConsole(orchestrator, store, in, out).Run(ctx)
}
