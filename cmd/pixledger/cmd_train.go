package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/train"
)

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().String("model", "", "name of the new model (required)")
	trainCmd.Flags().Int("epochs", 0, "training epochs (required)")
	_ = trainCmd.MarkFlagRequired("model")
	_ = trainCmd.MarkFlagRequired("epochs")
}

var trainCmd = &cobra.Command{
	Use:   "train --model <name> --epochs <n> <image>...",
	Short: "Submit images to train a new model",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		epochs, _ := cmd.Flags().GetInt("epochs")

		a, err := newApp()
		if err != nil {
			return err
		}

		receipt, err := train.New(a.client).Submit(cmd.Context(), train.Job{
			ModelName: model,
			Epochs:    epochs,
			Images:    args,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Training recorded in block #%d\n", receipt.Index)
		fmt.Fprintf(out, "  timestamp: %s\n", receipt.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "  hash:      %s\n", receipt.Hash)
		fmt.Fprintf(out, "  proof:     %s\n", receipt.Proof)
		return nil
	},
}
