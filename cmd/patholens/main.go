package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/FrenchMajesty/patholens/pkg/classifier"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const progname = "patholens"

var version = "dev"

type classifierFactory func(cfg classifier.Config) (*classifier.Classifier, error)

func main() {
	// A missing .env is fine: everything has a default.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		exitWithError(os.Stdout, fmt.Errorf("failed to load .env: %w", err))
	}

	app := newApp(os.Stdout, classifier.NewClassifier)

	if err := app.Run(context.Background(), os.Args); err != nil {
		exitWithError(os.Stdout, err)
	}
}

func newApp(out io.Writer, newClassifier classifierFactory) *cli.Command {
	app := new(cli.Command)

	app.Name = progname
	app.Usage = "classify an image with the hosted PathoLens model and print the result as JSON"
	app.ArgsUsage = "IMAGE_PATH"
	app.Version = version
	app.HideHelpCommand = true
	app.Writer = out

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "Gradio space `id` (owner/name) or app URL",
			Sources: cli.EnvVars("PATHOLENS_ENDPOINT"),
			Value:   classifier.DefaultEndpoint,
		},
		&cli.StringFlag{
			Name:    "api-name",
			Usage:   "remote operation to invoke",
			Sources: cli.EnvVars("PATHOLENS_API_NAME"),
			Value:   classifier.DefaultAPIName,
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "timeout for each request to the space",
			Sources: cli.EnvVars("PATHOLENS_TIMEOUT"),
			Value:   classifier.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "hf-token",
			Usage:   "Hugging Face access `token` for private spaces",
			Sources: cli.EnvVars("HF_TOKEN"),
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "write debug logs to stderr",
			Sources: cli.EnvVars("PATHOLENS_DEBUG"),
		},
	}

	// Flag errors are reported as JSON by the caller, not as help text on stdout
	app.OnUsageError = func(_ context.Context, _ *cli.Command, err error, _ bool) error {
		return err
	}
	app.ExitErrHandler = func(_ context.Context, _ *cli.Command, _ error) {}

	app.Before = func(ctx context.Context, c *cli.Command) (context.Context, error) {
		configureLogging(c.Bool("debug"))
		return ctx, nil
	}

	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() < 1 {
			return writeResult(out, classifier.FromError(classifier.NewUsageError(progname)))
		}

		token := c.String("hf-token")

		clf, err := newClassifier(classifier.Config{
			Endpoint: c.String("endpoint"),
			APIName:  c.String("api-name"),
			HFToken:  &token,
			Timeout:  c.Duration("timeout"),
			Logger:   log.StandardLogger(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize classifier: %w", err)
		}

		return writeResult(out, clf.Classify(ctx, c.Args().First()))
	}

	return app
}

// configureLogging keeps stdout reserved for the JSON result
func configureLogging(debug bool) {
	log.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true})

	if debug {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.DebugLevel)
		return
	}

	log.SetOutput(io.Discard)
	log.SetLevel(log.PanicLevel)
}

func writeResult(out io.Writer, r classifier.Result) error {
	b, err := r.JSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(b))
	return err
}

func exitWithError(out io.Writer, err error) {
	_ = writeResult(out, classifier.Failure(err.Error()))
	os.Exit(1)
}
