// Package main provides the CLI entry point for golfctl.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JoobyPM/char-golf/internal/apiclient"
	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/backend/local"
	"github.com/JoobyPM/char-golf/internal/backend/remote"
	"github.com/JoobyPM/char-golf/internal/config"
	"github.com/JoobyPM/char-golf/internal/shorten"
	"github.com/JoobyPM/char-golf/internal/stringutil"
	"github.com/JoobyPM/char-golf/internal/tui"
)

// Output format constants.
const (
	outputJSON = "json"
	outputYAML = "yaml"
	outputText = "text"
)

const requestTimeout = 10 * time.Second

// Exit codes. Commands use these semantically:
//   - exitValidation: invalid mode, engine, budget or config
//   - exitServer: daemon unreachable or rejected the request
//   - exitWrite: writing the output failed
const (
	exitValidation = 1
	exitServer     = 2
	exitWrite      = 3
)

// ExitError is an error that carries a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitErr creates an ExitError with the given code and message.
func exitErr(code int, msg string) error {
	return &ExitError{Code: code, Message: msg}
}

// app holds flag values and lazily built state for one command tree.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// Global flags
	flagConfigPath string
	flagServer     string
	flagMode       string
	flagEngine     string
	flagBudget     int
	flagMinLength  int
	flagMatchCase  bool
	flagNoPunct    bool

	// Shorten flags
	shortenOutput string
	shortenCounts bool
	shortenEOF    bool

	// Sample flags
	sampleCount int
	sampleSeed  uint64
	sampleWords int

	// Modes flags
	modesOutput string

	// Config flags
	configShowOutput string
	configInitGlobal bool
	configInitForce  bool

	cfg *config.Config
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := a.rootCmd().Execute(); err != nil {
		var exitError *ExitError
		if errors.As(err, &exitError) {
			fmt.Fprintln(os.Stderr, "Error:", exitError.Message)
			os.Exit(exitError.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootCmd builds the command tree.
func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "golfctl",
		Short: "char-golf CLI - shorten strings to a code-point budget",
		Long: `golfctl shortens text either by truncating it to a code-point budget
or by golfing it with Unicode compatibility characters ("ffi" -> "ﬃ").

Commands run in-process by default. With --server (or server.url in
config) they are sent to a char-golfd daemon instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfigPath, "config", "", "Custom config file path")
	pf.StringVar(&a.flagServer, "server", "", "char-golfd URL (empty shortens locally)")
	pf.StringVar(&a.flagMode, "mode", "", "Mode: plain or punctuation")
	pf.StringVar(&a.flagEngine, "engine", "", "Engine: truncate or golf")
	pf.IntVar(&a.flagBudget, "budget", 0, "Maximum output length in code points")
	pf.IntVar(&a.flagMinLength, "min-length", -1, "Shortest output punctuation stripping may leave")
	pf.BoolVar(&a.flagMatchCase, "match-case", false, "Golf: only use case-preserving compositions")
	pf.BoolVar(&a.flagNoPunct, "no-punctuation", false, "Don't use punctuation-bearing substitutions (same as --mode plain)")

	root.AddCommand(a.shortenCmd())
	root.AddCommand(a.tuiCmd())
	root.AddCommand(a.sampleCmd())
	root.AddCommand(a.modesCmd())
	root.AddCommand(a.healthCmd())

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and write configuration",
	}
	configCmd.AddCommand(a.configShowCmd())
	configCmd.AddCommand(a.configInitCmd())
	root.AddCommand(configCmd)

	return root
}

// initConfig loads the configuration with proper precedence.
func (a *app) initConfig() error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.Load(config.LoadOptions{ExplicitPath: a.flagConfigPath})
	if err != nil {
		return exitErr(exitValidation, fmt.Sprintf("load config: %v", err))
	}

	mode := a.flagMode
	if a.flagNoPunct {
		if mode != "" {
			if m, parseErr := shorten.ParseMode(mode); parseErr != nil || m != shorten.Plain {
				return exitErr(exitValidation, "--no-punctuation conflicts with --mode "+mode)
			}
		}
		mode = shorten.NamePlain
	}

	overrides := config.CLIOverrides{
		Budget:    a.flagBudget,
		Mode:      mode,
		Engine:    a.flagEngine,
		MatchCase: a.flagMatchCase,
		Server:    a.flagServer,
	}
	if a.flagMinLength >= 0 {
		overrides.MinLength = &a.flagMinLength
	}
	cfg.ApplyCLIOverrides(overrides)

	if err := cfg.Validate(); err != nil {
		return exitErr(exitValidation, err.Error())
	}

	a.cfg = cfg
	return nil
}

// engine returns the engine named by cfg, local or remote.
func (a *app) engine(name string) (backend.Engine, error) {
	if a.cfg.Server.URL != "" {
		return remote.New(a.cfg.Server.URL, name), nil
	}
	sc := a.cfg.Shorten
	sc.Engine = name
	eng, err := local.New(sc)
	if err != nil {
		return nil, exitErr(exitValidation, err.Error())
	}
	return eng, nil
}

// mapBackendError converts engine errors to exit codes.
func mapBackendError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shorten.ErrInvalidMode), errors.Is(err, backend.ErrUnknownEngine):
		return exitErr(exitValidation, err.Error())
	case backend.IsRetryable(err):
		return exitErr(exitServer, err.Error()+" (is char-golfd running?)")
	default:
		return exitErr(exitServer, err.Error())
	}
}

func (a *app) shortenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shorten [text...]",
		Short: "Shorten text from arguments or stdin",
		Long: `Shorten text given as arguments, or read from stdin when no arguments
are given. Stdin is read until an empty line; with --eof it is read to the
end of input and lines are kept joined by newlines.`,
		Example: `  golfctl shorten "greetings, friend"
  golfctl shorten --mode plain -o json "hello, world!"
  golfctl shorten --engine golf --counts "office affairs"
  cat notes.txt | golfctl shorten --eof`,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return a.initConfig()
		},
		RunE: func(_ *cobra.Command, args []string) error {
			var input string
			if len(args) > 0 {
				input = strings.Join(args, " ")
			} else {
				var err error
				input, err = readInput(a.stdin, a.shortenEOF)
				if err != nil {
					return exitErr(exitValidation, fmt.Sprintf("read stdin: %v", err))
				}
			}

			eng, err := a.engine(a.cfg.Shorten.Engine)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			res, err := eng.Shorten(ctx, input, a.cfg.ShortenMode())
			if err != nil {
				return mapBackendError(err)
			}

			return a.writeResults([]backend.Result{res}, a.shortenOutput, a.shortenCounts)
		},
	}
	cmd.Flags().StringVarP(&a.shortenOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	cmd.Flags().BoolVar(&a.shortenCounts, "counts", false, "Print input and output lengths")
	cmd.Flags().BoolVar(&a.shortenEOF, "eof", false, "Read stdin to EOF instead of the first empty line")
	return cmd
}

// writeResults prints results in the requested format.
func (a *app) writeResults(results []backend.Result, format string, counts bool) error {
	var err error
	switch format {
	case outputJSON:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			err = enc.Encode(results[0])
		} else {
			err = enc.Encode(results)
		}
	case outputYAML:
		if len(results) == 1 {
			err = yaml.NewEncoder(a.stdout).Encode(results[0])
		} else {
			err = yaml.NewEncoder(a.stdout).Encode(results)
		}
	case outputText, "":
		for _, r := range results {
			if _, err = fmt.Fprintln(a.stdout, r.Output); err != nil {
				break
			}
			if counts {
				_, err = fmt.Fprintf(a.stdout, "  %d -> %d code points (-%d)\n",
					r.InputLength, r.OutputLength, r.Saved())
				if err != nil {
					break
				}
			}
		}
	default:
		return exitErr(exitValidation, fmt.Sprintf("unknown output format %q (want text, json or yaml)", format))
	}
	if err != nil {
		return exitErr(exitWrite, fmt.Sprintf("write output: %v", err))
	}
	return nil
}

func (a *app) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui [text]",
		Short: "Interactive shorten-as-you-type view",
		Long: `Launch an interactive view that shortens the input on every keystroke
and shows the input and output lengths in code points.

Keys:
  Tab          Cycle mode
  Ctrl+G       Toggle engine (truncate / golf)
  Enter        Print the current output and exit
  Esc          Clear input or quit
  Ctrl+C       Quit`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return a.initConfig()
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Configured engine first so it is active on start.
			names := []string{a.cfg.Shorten.Engine}
			for _, n := range backend.Engines() {
				if n != a.cfg.Shorten.Engine {
					names = append(names, n)
				}
			}
			engines := make([]backend.Engine, 0, len(names))
			for _, n := range names {
				eng, err := a.engine(n)
				if err != nil {
					return err
				}
				engines = append(engines, eng)
			}

			opts := tui.Options{
				Engines: engines,
				Mode:    a.cfg.ShortenMode(),
				Budget:  a.cfg.Shorten.Budget,
				Async:   a.cfg.Server.URL != "",
			}
			if len(args) > 0 {
				opts.Initial = args[0]
			}

			result, err := tui.Run(opts)
			if err != nil {
				return err
			}
			if result.Cancelled {
				return nil
			}
			if _, err := fmt.Fprintln(a.stdout, result.Last.Output); err != nil {
				return exitErr(exitWrite, fmt.Sprintf("write output: %v", err))
			}
			return nil
		},
	}
}

func (a *app) sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Shorten generated sentences in every mode",
		Long: `Generate random sentences and shorten each in every mode, to show how
the modes differ. Use --seed for repeatable output.`,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return a.initConfig()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			if a.sampleCount < 1 {
				return exitErr(exitValidation, "--count must be at least 1")
			}

			eng, err := a.engine(a.cfg.Shorten.Engine)
			if err != nil {
				return err
			}

			faker := gofakeit.New(a.sampleSeed)
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			for i := range a.sampleCount {
				input := faker.Sentence(a.sampleWords)
				if i%3 == 2 {
					input = faker.BS() + ", " + faker.BuzzWord() + "!"
				}
				if _, err := fmt.Fprintln(a.stdout, input); err != nil {
					return exitErr(exitWrite, fmt.Sprintf("write output: %v", err))
				}
				for _, mode := range shorten.Modes() {
					res, err := eng.Shorten(ctx, input, mode)
					if err != nil {
						return mapBackendError(err)
					}
					line := fmt.Sprintf("  %-12s %s  (%d -> %d)", mode, stringutil.Visible(res.Output),
						res.InputLength, res.OutputLength)
					if _, err := fmt.Fprintln(a.stdout, line); err != nil {
						return exitErr(exitWrite, fmt.Sprintf("write output: %v", err))
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&a.sampleCount, "count", "n", 5, "Number of sentences")
	cmd.Flags().Uint64Var(&a.sampleSeed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().IntVar(&a.sampleWords, "words", 6, "Words per sentence")
	return cmd
}

// modesInfo is the output of the modes command.
type modesInfo struct {
	Modes     []string `json:"modes" yaml:"modes"`
	Engines   []string `json:"engines" yaml:"engines"`
	Budget    int      `json:"budget" yaml:"budget"`
	MinLength int      `json:"min_length" yaml:"min_length"`
	Mode      string   `json:"default_mode" yaml:"default_mode"`
	Engine    string   `json:"default_engine" yaml:"default_engine"`
	Source    string   `json:"source" yaml:"source"`
}

func (a *app) modesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modes",
		Short: "List modes and engines",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return a.initConfig()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			info, err := a.modes()
			if err != nil {
				return err
			}

			switch a.modesOutput {
			case outputJSON:
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case outputYAML:
				return yaml.NewEncoder(a.stdout).Encode(info)
			default:
				fmt.Fprintf(a.stdout, "Modes:    %s\n", strings.Join(info.Modes, ", "))
				fmt.Fprintf(a.stdout, "Engines:  %s\n", strings.Join(info.Engines, ", "))
				fmt.Fprintf(a.stdout, "Budget:   %d (min length %d)\n", info.Budget, info.MinLength)
				fmt.Fprintf(a.stdout, "Default:  %s / %s\n", info.Mode, info.Engine)
				fmt.Fprintf(a.stdout, "Source:   %s\n", info.Source)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.modesOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	return cmd
}

// modes describes local capabilities, or asks the daemon when one is set.
func (a *app) modes() (modesInfo, error) {
	if a.cfg.Server.URL == "" {
		names := make([]string, 0, len(shorten.Modes()))
		for _, m := range shorten.Modes() {
			names = append(names, m.String())
		}
		return modesInfo{
			Modes:     names,
			Engines:   backend.Engines(),
			Budget:    a.cfg.Shorten.Budget,
			MinLength: a.cfg.Shorten.MinLength,
			Mode:      a.cfg.ShortenMode().String(),
			Engine:    a.cfg.Shorten.Engine,
			Source:    "local",
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := apiclient.New(a.cfg.Server.URL).Modes(ctx)
	if err != nil {
		return modesInfo{}, exitErr(exitServer, err.Error())
	}
	return modesInfo{
		Modes:     resp.Modes,
		Engines:   resp.Engines,
		Budget:    resp.Budget,
		MinLength: resp.MinLength,
		Mode:      resp.Default.Mode,
		Engine:    resp.Default.Engine,
		Source:    a.cfg.Server.URL,
	}, nil
}

func (a *app) configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return a.initConfig()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			switch a.configShowOutput {
			case outputJSON:
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(a.cfg)
			default:
				fmt.Fprint(a.stdout, a.cfg.String())

				// Show discovered config file paths
				global, project := config.DiscoveredPaths()
				fmt.Fprintln(a.stdout, "\n# Configuration sources:")
				if global != "" {
					fmt.Fprintf(a.stdout, "# - Global: %s\n", global)
				} else {
					fmt.Fprintln(a.stdout, "# - Global: (not found)")
				}
				if project != "" {
					fmt.Fprintf(a.stdout, "# - Project: %s\n", project)
				} else {
					fmt.Fprintln(a.stdout, "# - Project: (not found)")
				}
				if a.flagConfigPath != "" {
					fmt.Fprintf(a.stdout, "# - Explicit: %s\n", a.flagConfigPath)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.configShowOutput, "output", "o", outputYAML, "Output format (yaml, json)")
	return cmd
}

func (a *app) configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a config file",
		Long: `Write the effective configuration (defaults, files, environment and
flags) to .golf.yaml in the current directory, or with --global to
~/.config/golf/config.yaml.`,
		Example: `  golfctl config init --budget 20 --engine golf
  golfctl config init --global --mode plain`,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return a.initConfig()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			path := config.ProjectConfigFile
			if a.configInitGlobal {
				home, err := os.UserHomeDir()
				if err != nil {
					return exitErr(exitWrite, fmt.Sprintf("locate home directory: %v", err))
				}
				path = filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile)
			}

			if _, err := os.Stat(path); err == nil && !a.configInitForce {
				fmt.Fprintln(a.stderr, "Use --force to overwrite")
				return exitErr(exitValidation, "config already exists: "+path)
			}

			var err error
			if a.configInitGlobal {
				err = a.cfg.SaveGlobal()
			} else {
				err = a.cfg.SaveTo(path)
			}
			if err != nil {
				return exitErr(exitWrite, fmt.Sprintf("write config: %v", err))
			}

			fmt.Fprintf(a.stdout, "✓ Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.configInitGlobal, "global", false, "Write the global config instead of .golf.yaml")
	cmd.Flags().BoolVar(&a.configInitForce, "force", false, "Overwrite an existing file")
	return cmd
}

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health [url]",
		Short: "Check a char-golfd health listener",
		Long: `Check that a char-golfd health listener reports ready on /readyz,
which happens once the golf tables are built. The URL defaults to --server
(or server.url), which only works when health and API share an address.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return a.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.cfg.Server.URL
			if len(args) == 1 {
				url = args[0]
			}
			if url == "" {
				return exitErr(exitValidation, "no server: pass a URL or set --server")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := apiclient.New(url).Health(ctx, ""); err != nil {
				return exitErr(exitServer, err.Error())
			}
			fmt.Fprintf(a.stdout, "✓ %s is healthy\n", url)
			return nil
		},
	}
}
