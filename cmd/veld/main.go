package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"veld/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "veld",
	Short: "Veld language toolchain",
	Long:  `Veld is a toolchain for network-qualified veld programs`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(moduleCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("verbose", false, "log per-dependency progress")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")

	cobra.OnInitialize(setupColor)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupColor() {
	mode, err := rootCmd.PersistentFlags().GetString("color")
	if err != nil {
		return
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
