package testctl

import (
	"fmt"
	"os"
)

// Config carries the settings shared by every command.
type Config struct {
	APIPort int
	LogLvl  string
}

// defaultConfig seeds a Config from the environment.
func defaultConfig() *Config {
	return &Config{
		APIPort: envInt("INFERD_API_PORT", 18080),
		LogLvl:  envStr("TESTCTL_LOG_LEVEL", "info"),
	}
}

func usage() {
	fmt.Println("Usage: testctl [--api-port N] [--log-level info] <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  install all|go|llama|llama:cuda")
	fmt.Println("  test go")
	fmt.Println("  test all")
	fmt.Println("  smoke api|live|auto")
	fmt.Println("  completion bash|zsh|fish|powershell")
}

// MainWithArgs is a testable variant of Main that accepts args explicitly.
// It returns an exit code (0 for success, non-zero on error).
func MainWithArgs(args []string) int {
	// If user explicitly asks for help, print usage and exit 0
	for _, a := range args {
		if a == "-h" || a == "--help" || a == "help" {
			usage()
			return 0
		}
	}
	if len(args) == 0 {
		usage()
		return 2
	}
	root := buildRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

// Main returns an exit code (0 for success, non-zero on error) for use by cmd/testctl.
func Main() int { return MainWithArgs(os.Args[1:]) }
