package main

import (
	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/ledger"
)

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.Flags().IntSlice("expand", nil, "block index to show in full (repeatable)")
	chainCmd.Flags().Bool("all", false, "show every transaction of every block")
}

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Show the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		view := ledger.NewView(a.client, a.cfg.Ledger.PreviewLimit)
		if err := view.Load(cmd.Context()); err != nil {
			return err
		}

		if all, _ := cmd.Flags().GetBool("all"); all {
			view.ExpandAll()
		} else {
			expand, _ := cmd.Flags().GetIntSlice("expand")
			for _, idx := range expand {
				if !view.Expanded(idx) {
					view.Toggle(idx)
				}
			}
		}
		return ledger.Render(cmd.OutOrStdout(), view.Rows())
	},
}
