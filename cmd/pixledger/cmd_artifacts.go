package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/state"
	"github.com/user/pixledger/internal/types"
)

func init() {
	rootCmd.AddCommand(artifactsCmd)
	artifactsCmd.AddCommand(artifactsShowCmd)

	artifactsShowCmd.Flags().String("dir", "", "artifact directory (default <data_dir>/artifacts)")
	artifactsShowCmd.Flags().String("copy-to", "", "write the image bytes to this file")
}

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect saved images",
}

var artifactsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved image's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = filepath.Join(cfg.DataDir, "artifacts")
		}
		store := state.NewArtifactStore(dir)
		id := types.ArtifactID(args[0])

		meta, err := store.GetMeta(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:      %s\n", meta.ID)
		fmt.Fprintf(out, "Model:   %s\n", meta.Model)
		fmt.Fprintf(out, "Index:   %d\n", meta.Index)
		fmt.Fprintf(out, "Type:    %s\n", meta.MimeType)
		fmt.Fprintf(out, "Path:    %s\n", meta.Path)
		fmt.Fprintf(out, "Created: %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))

		copyTo, _ := cmd.Flags().GetString("copy-to")
		if copyTo == "" {
			return nil
		}
		data, err := store.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err := os.WriteFile(copyTo, data, 0644); err != nil {
			return fmt.Errorf("copy image: %w", err)
		}
		fmt.Fprintln(out, "Copied to", copyTo)
		return nil
	},
}
