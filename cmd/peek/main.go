package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"peek/internal/banner"
	"peek/internal/brain"
	"peek/internal/cli"
	"peek/internal/config"
	"peek/internal/db"
	"peek/internal/domain"
	"peek/internal/llm"
	"peek/internal/render"
	"peek/internal/retry"
	"peek/internal/secrets"
	"peek/internal/session"
	"peek/internal/signals"
	"peek/internal/tokenizer"
	"peek/internal/tooling"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("peek %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

// Package-level so tests can feed input and environment without touching the process.
var (
	stdin        io.Reader = os.Stdin
	getenv                 = os.Getenv
	noDelay                = false
	newTokenizer           = tokenizer.ForModel
	openVault              = secrets.OpenDefault
)

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:           "peek",
		Short:         "Chat with your database",
		Long:          "Peek connects a language model to a SQL database so you can ask questions in plain words.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return cmd.Help()
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")
	root.PersistentFlags().String("config", "", "config file (default $PEEK_CONFIG or <user config dir>/peek/config.yaml)")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat against a connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, bm)
		},
	}
	chatCmd.Flags().StringP("connection", "c", "", "connection name, workspace/name, or \"[workspace] name\"")
	chatCmd.Flags().String("resume", "", "continue the conversation in a transcript file and keep appending to it")
	root.AddCommand(chatCmd)

	queryCmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run one SQL statement and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().StringP("connection", "c", "", "connection name, workspace/name, or \"[workspace] name\"")
	queryCmd.Flags().Bool("exec", false, "run a statement that returns no rows")
	queryCmd.Flags().Bool("json", false, "print the result as JSON")
	root.AddCommand(queryCmd)

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print tables, columns and foreign-key references",
		Args:  cobra.NoArgs,
		RunE:  runSchema,
	}
	schemaCmd.Flags().StringP("connection", "c", "", "connection name, workspace/name, or \"[workspace] name\"")
	schemaCmd.Flags().Bool("json", false, "print the schema as JSON")
	root.AddCommand(schemaCmd)

	root.AddCommand(&cobra.Command{
		Use:   "connections",
		Short: "List configured connections",
		Args:  cobra.NoArgs,
		RunE:  runConnections,
	})

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check config, connections, AI provider and paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			fix, _ := cmd.Flags().GetBool("fix")
			opts := cli.CheckOptions{Path: path, Fix: fix, Getenv: providerEnv(zerolog.Nop())}
			if code := cli.RunCheck(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
				return exitCodeErr(code)
			}
			return nil
		},
	}
	checkCmd.Flags().Bool("fix", false, "write default config if missing")
	root.AddCommand(checkCmd)

	secretsCmd := &cobra.Command{Use: "secrets", Short: "Store provider API keys encrypted, outside the config file"}
	secretsSetCmd := &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret under an environment variable name (value read from stdin if omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSecretsSet,
	}
	secretsDeleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretsDelete,
	}
	secretsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Args:  cobra.NoArgs,
		RunE:  runSecretsList,
	}
	secretsCmd.AddCommand(secretsSetCmd, secretsDeleteCmd, secretsListCmd)
	root.AddCommand(secretsCmd)

	configCmd := &cobra.Command{Use: "config", Short: "Manage the config file"}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing config")
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	configCmd.AddCommand(initCmd, pathCmd)
	root.AddCommand(configCmd)

	return root
}

func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	return config.Path(getenv)
}

func loadConfig(cmd *cobra.Command) (*domain.Config, zerolog.Logger, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, config.NewLogger(cfg.Log, cmd.ErrOrStderr()), nil
}

// openConnection resolves the --connection flag and connects with retries.
// Without a flag and with several connections configured, the user is asked.
func openConnection(cmd *cobra.Command, cfg *domain.Config, logger zerolog.Logger, in io.Reader) (*db.Database, domain.ConnectionChoice, error) {
	name, _ := cmd.Flags().GetString("connection")
	choices := cfg.Connections()
	choice, err := cli.SelectConnection(choices, name)
	if err != nil {
		if name != "" || len(choices) < 2 {
			return nil, domain.ConnectionChoice{}, err
		}
		if choice, err = cli.PromptConnection(in, cmd.OutOrStdout(), choices); err != nil {
			return nil, domain.ConnectionChoice{}, err
		}
	}

	rc := retry.FromDomain(cfg.Retry)
	if err := rc.Validate(); err != nil {
		return nil, choice, err
	}
	logger.Debug().Str("connection", choice.DisplayName()).Msg("connecting")
	d, err := cli.Connect(cmd.Context(), choice.Connection.URL, rc, logger)
	if err != nil {
		return nil, choice, fmt.Errorf("%s: %w", choice.DisplayName(), err)
	}
	return d, choice, nil
}

// resumeTurns caps how much of a transcript chat --resume reads back.
const resumeTurns = 200

func runChat(cmd *cobra.Command, bm buildMeta) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	in := lineInput(stdin)
	database, choice, err := openConnection(cmd, cfg, logger, in)
	if err != nil {
		return err
	}
	defer database.Close()

	graph, err := database.Schema(ctx)
	if err != nil {
		return err
	}
	provider, err := llm.NewProvider(ctx, cfg.AI, providerEnv(logger))
	if err != nil {
		return err
	}

	opts := []brain.Option{brain.WithLogger(logger)}
	if tk, err := newTokenizer(cfg.AI.Model); err != nil {
		logger.Warn().Err(err).Msg("token counting disabled")
	} else {
		opts = append(opts, brain.WithTokenizer(tk))
	}
	var resumed []domain.Turn
	if path, _ := cmd.Flags().GetString("resume"); path != "" {
		tr := session.OpenTranscript(path)
		if resumed, err = tr.Load(resumeTurns); err != nil {
			return fmt.Errorf("resume %s: %w", path, err)
		}
		opts = append(opts, brain.WithTranscript(tr))
	} else if cfg.TranscriptDir != "" {
		tr, err := session.NewTranscript(cfg.TranscriptDir)
		if err != nil {
			return err
		}
		logger.Info().Str("path", tr.Path()).Msg("writing transcript")
		opts = append(opts, brain.WithTranscript(tr))
	}

	conv := brain.NewSession(provider, opts...)
	conv.SetSystemPrompt(cli.SystemPrompt(database.Dialect().Name, graph))
	conv.AddTool(tooling.QueryToolDefinition())
	if n := conv.Restore(resumed); n > 0 {
		logger.Info().Int("turns", n).Msg("resumed conversation")
	}

	label := render.ConnectionLabel(choice)
	banner.Startup(bm.Version, &banner.StartupOpts{Writer: cmd.OutOrStdout(), NoDelay: noDelay, Connection: label})
	loop := cli.NewLoop(conv, database, cmd.OutOrStdout(), cmd.ErrOrStderr(), label, cli.WithLoopLogger(logger))
	err = loop.Run(ctx, in)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, _, err := openConnection(cmd, cfg, logger, lineInput(stdin))
	if err != nil {
		return err
	}
	defer database.Close()

	out := cmd.OutOrStdout()
	if exec, _ := cmd.Flags().GetBool("exec"); exec {
		status, err := database.Execute(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, status)
		return nil
	}

	res, err := database.Results(ctx, args[0])
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		text, err := res.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}
	fmt.Fprintln(out, render.Result(res))
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, _, err := openConnection(cmd, cfg, logger, lineInput(stdin))
	if err != nil {
		return err
	}
	defer database.Close()

	graph, err := database.Schema(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := graph.MarshalJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.Graph(graph))
	return nil
}

func runConnections(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	choices := cfg.Connections()
	if len(choices) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), render.Muted("(no connections configured)"))
		return nil
	}
	for _, c := range choices {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", render.ConnectionLabel(c), render.Muted(scheme(c.Connection.URL)))
	}
	return nil
}

// providerEnv resolves API keys from the environment, then the secrets vault.
func providerEnv(logger zerolog.Logger) llm.Getenv {
	vault, err := openVault(getenv)
	if err != nil {
		logger.Debug().Err(err).Msg("secrets vault unavailable")
		return getenv
	}
	return vault.Getenv(getenv)
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	vault, err := openVault(getenv)
	if err != nil {
		return err
	}
	value := ""
	if len(args) == 2 {
		value = args[1]
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Value for %s: ", args[0])
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		return fmt.Errorf("secret %s: empty value", args[0])
	}
	if err := vault.Set(args[0], value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in %s\n", args[0], vault.Path())
	return nil
}

func runSecretsDelete(cmd *cobra.Command, args []string) error {
	vault, err := openVault(getenv)
	if err != nil {
		return err
	}
	return vault.Delete(args[0])
}

func runSecretsList(cmd *cobra.Command, args []string) error {
	vault, err := openVault(getenv)
	if err != nil {
		return err
	}
	names, err := vault.Names()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if force, _ := cmd.Flags().GetBool("force"); !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
	return nil
}

// scheme shows only the URL scheme so credentials are never printed.
func scheme(url string) string {
	if i := strings.Index(url, "://"); i > 0 {
		return url[:i]
	}
	if i := strings.Index(url, ":"); i > 0 {
		return url[:i]
	}
	return url
}

func getVersion() string {
	if version != "" {
		return version
	}
	b, err := os.ReadFile("VERSION")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(b))
}

// version is set at build time via ldflags for build metadata, e.g.:
//
//	go build -ldflags "-X main.version=0.3.1" -o peek ./cmd/peek
var version string

// exitCodeErr carries an exit code for the process. When returned from a command, runApp exits with that code.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// runApp runs the root command with the given args and returns the exit code.
// Interrupt and SIGTERM cancel the command's context.
func runApp(args []string) int {
	bm := newBuildMeta(version, "", "")
	if bm.Version == "" {
		bm.Version = getVersion()
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals.ShutdownSignals()...)
	defer stop()

	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		if ec, ok := err.(interface{ ExitCode() int }); ok {
			return ec.ExitCode()
		}
		fmt.Fprintln(os.Stderr, render.Error(err))
		return 1
	}
	return 0
}
