package testctl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildRootCmd constructs the command tree with env-seeded defaults.
func buildRootCmd() *cobra.Command { return buildRootCmdWith(defaultConfig()) }

// buildRootCmdWith constructs the Cobra command tree wired to the fn* actions.
func buildRootCmdWith(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "testctl",
		Short:         "Build and smoke-test utilities for the inferd server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags -> Config
	root.PersistentFlags().Int("api-port", cfg.APIPort, "Preferred port for the smoke server (defaults INFERD_API_PORT or 18080)")
	root.PersistentFlags().String("log-level", cfg.LogLvl, "Log level: debug|info|warn|error (defaults TESTCTL_LOG_LEVEL or info)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if f := cmd.InheritedFlags().Lookup("api-port"); f != nil {
			var n int
			_, _ = fmt.Sscanf(f.Value.String(), "%d", &n)
			if n != 0 {
				cfg.APIPort = n
			}
		}
		if f := cmd.InheritedFlags().Lookup("log-level"); f != nil {
			if v := f.Value.String(); v != "" {
				cfg.LogLvl = v
			}
		}
		SetLogLevel(cfg.LogLvl)
	}

	// install group
	installCmd := &cobra.Command{Use: "install", Short: "Install build dependencies", Args: func(cmd *cobra.Command, args []string) error {
		return nil
	}, RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("install requires a subcommand: all|go|llama|llama:cuda")
	}}
	installAll := &cobra.Command{Use: "all", Short: "Download Go modules and build llama.cpp", Example: "  testctl install all", RunE: func(cmd *cobra.Command, args []string) error {
		if err := fnInstallGo(); err != nil {
			return err
		}
		return fnInstallLlama()
	}}
	installGoCmd := &cobra.Command{Use: "go", Short: "Download Go modules", Example: "  testctl install go", RunE: func(cmd *cobra.Command, args []string) error { return fnInstallGo() }}
	installLlamaCmd := &cobra.Command{Use: "llama", Short: "Build llama.cpp shared libraries (CPU)", RunE: func(cmd *cobra.Command, args []string) error { return fnInstallLlama() }}
	installLlamaCUDACmd := &cobra.Command{Use: "llama:cuda", Short: "Build llama.cpp shared libraries with CUDA", RunE: func(cmd *cobra.Command, args []string) error { return fnInstallLlamaCUDA() }}
	installCmd.AddCommand(installAll, installGoCmd, installLlamaCmd, installLlamaCUDACmd)
	root.AddCommand(installCmd)

	// test group
	testCmd := &cobra.Command{Use: "test", Short: "Run tests", Args: func(cmd *cobra.Command, args []string) error {
		return nil
	}, RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("test requires a subcommand: go|all")
	}}
	testGo := &cobra.Command{Use: "go", Short: "Run Go tests", RunE: func(cmd *cobra.Command, args []string) error { return fnRunGoTests() }}
	testAll := &cobra.Command{Use: "all", Short: "Go tests, then the smoke suite", RunE: func(cmd *cobra.Command, args []string) error {
		if err := fnRunGoTests(); err != nil {
			return err
		}
		return smokeAuto(cfg)
	}}
	testCmd.AddCommand(testGo, testAll)
	root.AddCommand(testCmd)

	// smoke group
	smokeCmd := &cobra.Command{Use: "smoke", Short: "Boot the server and exercise the HTTP API", Example: "  testctl smoke api\n  testctl smoke live\n  testctl smoke auto", Args: func(cmd *cobra.Command, args []string) error {
		return nil
	}, RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("smoke requires a mode: api|live|auto")
	}}
	smokeAPICmd := &cobra.Command{Use: "api", Short: "Exercise the unloaded API surface, no model needed", RunE: func(cmd *cobra.Command, args []string) error { return fnSmokeAPI(cfg) }}
	smokeLiveCmd := &cobra.Command{Use: "live", Short: "Load a host model and validate a streamed generation", RunE: func(cmd *cobra.Command, args []string) error { return fnSmokeLive(cfg) }}
	smokeAutoCmd := &cobra.Command{Use: "auto", Short: "Choose live if a host model and library exist, else api", RunE: func(cmd *cobra.Command, args []string) error { return smokeAuto(cfg) }}
	smokeCmd.AddCommand(smokeAPICmd, smokeLiveCmd, smokeAutoCmd)
	root.AddCommand(smokeCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(os.Stdout) }})
	root.AddCommand(completionCmd)

	return root
}
