package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuroscreen-fusion-server/internal/config"
	"github.com/neuroscreen-fusion-server/internal/setup"
)

var setupFlags struct {
	binary     string
	dataDir    string
	configPath string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register this server with the desktop MCP client",
	RunE:  runSetup,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the desktop client registration and any problems with it",
	RunE:  runStatus,
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Remove this server from the desktop MCP client",
	RunE:  runUnregister,
}

func init() {
	f := setupCmd.Flags()
	f.StringVar(&setupFlags.binary, "binary", "", "server binary to register (default: search next to this binary, then PATH)")
	f.StringVar(&setupFlags.dataDir, "data-dir", "", "data directory passed as NEUROFUSION_DATA_DIR")

	for _, c := range []*cobra.Command{setupCmd, statusCmd, unregisterCmd} {
		c.Flags().StringVar(&setupFlags.configPath, "client-config", "", "client configuration file (default: platform location)")
	}
}

func clientConfigPath() (string, error) {
	if setupFlags.configPath != "" {
		return setupFlags.configPath, nil
	}
	return setup.DesktopConfigPath()
}

func runSetup(cmd *cobra.Command, _ []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	entry, err := setup.Register(path, setup.Options{
		BinaryPath: setupFlags.binary,
		DataDir:    setupFlags.dataDir,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Registered %q in %s\n", setup.ServerKey, path)
	fmt.Fprintf(out, "  command: %s\n", entry.Command)
	if dir := entry.Env[setup.DataDirEnv]; dir != "" {
		fmt.Fprintf(out, "  data dir: %s\n", dir)
	}
	fmt.Fprintln(out, "Restart the client to load the server.")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	status, err := setup.Check(path, config.DefaultLiteConfig().DataDir)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

func runUnregister(cmd *cobra.Command, _ []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	removed, err := setup.Unregister(path)
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %q from %s\n", setup.ServerKey, path)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%q is not registered in %s\n", setup.ServerKey, path)
	}
	return nil
}
