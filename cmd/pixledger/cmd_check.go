package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/verify"
)

func init() {
	rootCmd.AddCommand(checkCmd, extractCmd)
	addGenerateFlags(extractCmd)
	extractCmd.Flags().Bool("generate", false, "generate a batch from the model that made the image")
}

func readImageArg(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	return data, filepath.Base(path), nil
}

var checkCmd = &cobra.Command{
	Use:   "check <image>",
	Short: "Check whether an image was used to train a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, name, err := readImageArg(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}

		result, err := verify.New(a.client).Check(cmd.Context(), image, name)
		if err != nil {
			return err
		}
		return verify.Describe(cmd.OutOrStdout(), result)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Find the model that generated an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, name, err := readImageArg(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}

		ref, err := verify.New(a.client).Extract(cmd.Context(), image, name)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Model: %s\n", ref)

		if gen, _ := cmd.Flags().GetBool("generate"); !gen {
			fmt.Fprintf(out, "Generate more with: pixledger generate %s\n", ref)
			return nil
		}
		return runGenerate(cmd.Context(), a, out, ref, readGenerateOptions(cmd))
	},
}
