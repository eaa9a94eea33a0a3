package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "pixledger Setup Wizard")
		fmt.Fprintln(out, "Press Enter to accept the default value shown in brackets.")
		fmt.Fprintln(out)

		cfg.API.BaseURL = prompt(scanner, out, "Ledger API URL", cfg.API.BaseURL)
		cfg.Generator.BaseURL = prompt(scanner, out, "Image generator URL", cfg.Generator.BaseURL)

		sizeStr := prompt(scanner, out, "Images per batch", strconv.Itoa(cfg.Generate.BatchSize))
		if n, err := strconv.Atoi(sizeStr); err == nil && n > 0 {
			cfg.Generate.BatchSize = n
		}

		hashStr := prompt(scanner, out, "Send block_hash with generate requests", strconv.FormatBool(cfg.Generate.SendBlockHash))
		if b, err := strconv.ParseBool(hashStr); err == nil {
			cfg.Generate.SendBlockHash = b
		}

		cfg.Preview.Addr = prompt(scanner, out, "Preview server address", cfg.Preview.Addr)
		cfg.LogLevel = prompt(scanner, out, "Log level (debug, info, warn, error)", cfg.LogLevel)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, out io.Writer, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
