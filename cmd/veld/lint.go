package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"veld/internal/compiler"
	"veld/internal/lint"
	"veld/internal/observ"
	"veld/internal/project"
)

// defaultEndpoint is the registry queried for remote dependencies.
const defaultEndpoint = "https://registry.veld-lang.org/v1"

var lintCmd = &cobra.Command{
	Use:   "lint [path]",
	Short: "Verify and reformat a package and its local dependencies",
	Long: `Lint resolves the package's local dependency closure, recompiles every
dependency for verification and rewrites each source file in canonical form.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLint,
}

func init() {
	lintCmd.Flags().String("endpoint", defaultEndpoint, "registry endpoint for remote dependencies")
	lintCmd.Flags().String("home", "", "override the veld home directory")
}

func runLint(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	startDir := "."
	if len(args) > 0 && args[0] != "" {
		startDir = args[0]
	}
	endpoint, err := cmd.Flags().GetString("endpoint")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	manifestPath, ok, err := project.FindVeldToml(startDir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("lint: no %s found upward from %q", project.ManifestName, startDir)
	}
	manifest, err := project.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	programID, err := manifest.ProgramID()
	if err != nil {
		return err
	}

	homePath, err := resolveHomePath(cmd)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	switch {
	case verbose:
		log.SetLevel(logrus.DebugLevel)
	case quiet:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	timer := observ.NewTimer()
	handler := compiler.HandlerFunc(func(d compiler.Diagnostic) {
		fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render(d.String()))
	})

	linter, err := lint.New(programID, endpoint, manifest.Dir, homePath, &lint.Options{
		Logger:  log,
		Handler: handler,
		Timer:   timer,
	})
	if err != nil {
		return err
	}
	if err := linter.Lint(cmd.Context()); err != nil {
		return fmt.Errorf("lint: %w", err)
	}

	if showTimings {
		fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
	}
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("linted %s", programID)))
	}
	return nil
}

var (
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// resolveHomePath picks --home when set, else <user home>/.veld.
func resolveHomePath(cmd *cobra.Command) (string, error) {
	if override, err := cmd.Flags().GetString("home"); err == nil && override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".veld"), nil
}
