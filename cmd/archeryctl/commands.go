package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin/binding"
	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/config"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/encoding"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/types"
)

const version = "1.0.0"

// Flag names
const (
	flagScoring = "scoring"
	flagTargets = "targets"
	flagInput   = "input"
	flagEnvFile = "env-file"
	flagWrite   = "write"
)

func newApp() *cli.App {
	inputFlag := &cli.StringFlag{
		Name:    flagInput,
		Aliases: []string{"i"},
		Usage:   "request JSON file, - for stdin",
		Value:   "-",
	}

	return &cli.App{
		Name:    "archeryctl",
		Usage:   "score archery fixtures offline",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagScoring, Usage: "scoring parameters YAML file", EnvVars: []string{"SCORING_CONFIG"}},
			&cli.StringFlag{Name: flagTargets, Usage: "target ring configuration JSON file", EnvVars: []string{"TARGET_CONFIG"}},
		},
		Commands: []*cli.Command{
			{
				Name:   "score-pose",
				Usage:  "score a landmark sequence in the POST /analyze/pose body format",
				Flags:  []cli.Flag{inputFlag},
				Action: scorePose,
			},
			{
				Name:   "score-target",
				Usage:  "score detections in the POST /analyze/target body format",
				Flags:  []cli.Flag{inputFlag},
				Action: scoreTarget,
			},
			{
				Name:  "targets",
				Usage: "list the configured target types and rings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagWrite, Usage: "also write the loaded ring configuration to this JSON file"},
				},
				Action: listTargets,
			},
			{
				Name:  "check-config",
				Usage: "load and validate the service configuration, printing it with secrets masked",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagEnvFile, Usage: "dotenv file to load first", Value: ".env"},
				},
				Action: checkConfig,
			},
		},
	}
}

// buildAnalyzer loads the parameter and target files named by the global flags
func buildAnalyzer(c *cli.Context) (*analysis.Analyzer, error) {
	params, err := config.LoadScoringParams(c.String(flagScoring))
	if err != nil {
		return nil, err
	}
	if err := config.ValidateScoring(params); err != nil {
		return nil, err
	}
	registry, err := analysis.NewTargetStore(c.String(flagTargets)).Registry()
	if err != nil {
		return nil, err
	}
	return analysis.NewAnalyzer(params, registry)
}

// readRequest decodes the input file strictly and applies the request validation rules
func readRequest(c *cli.Context, v interface{}) error {
	var r io.Reader = c.App.Reader
	if path := c.String(flagInput); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	if err := encoding.Strict.Decode(r, v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func printJSON(c *cli.Context, v interface{}) error {
	data, err := encoding.Default.MarshalIndent(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}

func scorePose(c *cli.Context) error {
	analyzer, err := buildAnalyzer(c)
	if err != nil {
		return err
	}
	var req types.PoseAnalyzeRequest
	if err := readRequest(c, &req); err != nil {
		return err
	}

	result, err := analyzer.AnalyzePoseSequence(req.Input())
	if err != nil {
		return fmt.Errorf("pose analysis failed: %w", err)
	}
	return printJSON(c, result)
}

func scoreTarget(c *cli.Context) error {
	analyzer, err := buildAnalyzer(c)
	if err != nil {
		return err
	}
	var req types.TargetAnalyzeRequest
	if err := readRequest(c, &req); err != nil {
		return err
	}

	result, err := analyzer.AnalyzeTarget(req.Input())
	if err != nil {
		return fmt.Errorf("target analysis failed: %w", err)
	}
	return printJSON(c, result)
}

func listTargets(c *cli.Context) error {
	configs, err := analysis.NewTargetStore(c.String(flagTargets)).Load()
	if err != nil {
		return err
	}
	registry, err := analysis.NewTargetRegistry(configs)
	if err != nil {
		return err
	}
	if path := c.String(flagWrite); path != "" {
		if err := analysis.NewTargetStore(path).Save(configs); err != nil {
			return err
		}
	}
	return printJSON(c, types.TargetsResponse{Targets: registry.Describe()})
}

func checkConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String(flagEnvFile))
	if err != nil {
		return err
	}
	if cfg.Auth.EphemeralSecret {
		fmt.Fprintln(c.App.ErrWriter, "warning: JWT_SECRET is not set, a random secret would be used")
	}
	return printJSON(c, cfg.Redacted())
}
