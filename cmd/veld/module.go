package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"veld/internal/project"
	"veld/internal/retriever"
)

var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Manage package dependencies",
}

var moduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dependencies from veld.toml",
	Args:  cobra.NoArgs,
	RunE:  runModuleList,
}

var moduleInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Prefetch remote dependencies into the home cache",
	Args:  cobra.NoArgs,
	RunE:  runModuleInstall,
}

func init() {
	moduleListCmd.Flags().String("toml", "", "path to veld.toml")
	moduleInstallCmd.Flags().String("toml", "", "path to veld.toml")
	moduleInstallCmd.Flags().String("endpoint", defaultEndpoint, "registry endpoint for remote dependencies")
	moduleInstallCmd.Flags().String("home", "", "override the veld home directory")

	moduleCmd.AddCommand(moduleListCmd)
	moduleCmd.AddCommand(moduleInstallCmd)
}

func resolveManifest(op, tomlFlag string) (*project.Manifest, error) {
	path := tomlFlag
	if path == "" {
		found, ok, err := project.FindVeldToml(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s: no %s found upward from the current directory", op, project.ManifestName)
		}
		path = found
	}
	return project.LoadManifest(path)
}

func runModuleList(cmd *cobra.Command, _ []string) error {
	tomlFlag, err := cmd.Flags().GetString("toml")
	if err != nil {
		return fmt.Errorf("failed to read --toml: %w", err)
	}
	manifest, err := resolveManifest("module list", tomlFlag)
	if err != nil {
		return err
	}
	if len(manifest.Dependencies) == 0 {
		return writeStdoutln(cmd, "no dependencies defined")
	}

	names := make([]string, 0, len(manifest.Dependencies))
	for name := range manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := manifest.Dependencies[name]
		if spec.IsLocal() {
			resolved, err := manifest.ResolveDependencyPath(manifest.Dir, name, spec)
			if err != nil {
				return err
			}
			if err := writeStdoutf(cmd, "%s\tpath=%s\n", name, resolved); err != nil {
				return err
			}
			continue
		}
		network := spec.Network
		if network == "" {
			network = manifest.Network
		}
		cached := false
		id := project.ProgramID{Name: name, Network: network}
		homePath, err := resolveHomePath(cmd)
		if err == nil {
			if info, statErr := os.Stat(retriever.CachePath(homePath, id, spec.Version)); statErr == nil && !info.IsDir() {
				cached = true
			}
		}
		if err := writeStdoutf(cmd, "%s\tversion=%s\tnetwork=%s\tcached=%t\n", name, spec.Version, network, cached); err != nil {
			return err
		}
	}
	return nil
}

func runModuleInstall(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	tomlFlag, err := cmd.Flags().GetString("toml")
	if err != nil {
		return fmt.Errorf("failed to read --toml: %w", err)
	}
	endpoint, err := cmd.Flags().GetString("endpoint")
	if err != nil {
		return fmt.Errorf("failed to read --endpoint: %w", err)
	}
	manifest, err := resolveManifest("module install", tomlFlag)
	if err != nil {
		return err
	}
	homePath, err := resolveHomePath(cmd)
	if err != nil {
		return err
	}

	type remoteDep struct {
		id      project.ProgramID
		version string
	}
	remotes := make([]remoteDep, 0, len(manifest.Dependencies))
	names := make([]string, 0, len(manifest.Dependencies))
	for name := range manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := manifest.Dependencies[name]
		if spec.IsLocal() {
			continue
		}
		network := spec.Network
		if network == "" {
			network = manifest.Network
		}
		remotes = append(remotes, remoteDep{
			id:      project.ProgramID{Name: name, Network: network},
			version: spec.Version,
		})
	}
	if len(remotes) == 0 {
		return writeStdoutln(cmd, "no remote dependencies to install")
	}

	fetcher := retriever.NewFetcher(endpoint)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(4)
	results := make([]string, len(remotes))
	for i, dep := range remotes {
		g.Go(func() error {
			path, err := fetcher.Ensure(ctx, homePath, dep.id, dep.version)
			if err != nil {
				if errors.Is(err, retriever.ErrProgramNotFound) {
					return fmt.Errorf("dependency %s: %w", dep.id, err)
				}
				return err
			}
			results[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("module install failed: %w", err)
	}

	for i, dep := range remotes {
		rel := results[i]
		if short, err := filepath.Rel(homePath, rel); err == nil {
			rel = short
		}
		if err := writeStdoutf(cmd, "installed %s in %s\n", dep.id, rel); err != nil {
			return err
		}
	}
	return writeStdoutf(cmd, "summary: installed=%d\n", len(remotes))
}

func writeStdoutf(cmd *cobra.Command, format string, args ...any) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	return err
}

func writeStdoutln(cmd *cobra.Command, args ...any) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), args...)
	return err
}
