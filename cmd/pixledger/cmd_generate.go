package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/batch"
	"github.com/user/pixledger/internal/display"
	"github.com/user/pixledger/internal/preview"
	"github.com/user/pixledger/internal/registry"
	"github.com/user/pixledger/internal/state"
	"github.com/user/pixledger/internal/types"
)

func init() {
	rootCmd.AddCommand(generateCmd)
	addGenerateFlags(generateCmd)
}

func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().Int("count", 0, "images per batch (default generate.batch_size)")
	cmd.Flags().String("out", "", "directory to save images to (default <data_dir>/artifacts)")
	cmd.Flags().IntSlice("select", nil, "index of an image to save (repeatable)")
	cmd.Flags().Bool("save-all", false, "save every image of the batch")
	cmd.Flags().Bool("serve", false, "serve the batch on preview.addr until interrupted")
}

type generateOptions struct {
	count   int
	out     string
	selects []int
	saveAll bool
	serve   bool
}

func readGenerateOptions(cmd *cobra.Command) generateOptions {
	var o generateOptions
	o.count, _ = cmd.Flags().GetInt("count")
	o.out, _ = cmd.Flags().GetString("out")
	o.selects, _ = cmd.Flags().GetIntSlice("select")
	o.saveAll, _ = cmd.Flags().GetBool("save-all")
	o.serve, _ = cmd.Flags().GetBool("serve")
	return o
}

var generateCmd = &cobra.Command{
	Use:   "generate <owner>/<name>",
	Short: "Generate a batch of images from a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := registry.ParseRef(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		return runGenerate(cmd.Context(), a, cmd.OutOrStdout(), ref, readGenerateOptions(cmd))
	},
}

func runGenerate(ctx context.Context, a *app, out io.Writer, ref types.ModelRef, opts generateOptions) error {
	size := a.cfg.Generate.BatchSize
	if opts.count > 0 {
		size = opts.count
	}

	displayDir, err := os.MkdirTemp("", "pixledger-display-")
	if err != nil {
		return fmt.Errorf("create display dir: %w", err)
	}
	defer os.RemoveAll(displayDir)

	table, err := display.NewTable(displayDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := table.Close(); err != nil {
			slog.Warn("failed to release display handles", "error", err)
		}
	}()

	orch := batch.New(a.client, table, batch.Config{
		Size:          size,
		SendBlockHash: a.cfg.Generate.SendBlockHash,
	})

	fmt.Fprintf(out, "Generating %d images from %s...\n", size, ref)
	artifacts, err := orch.Generate(ctx, ref)
	if err != nil {
		return err
	}
	for _, art := range artifacts {
		fmt.Fprintf(out, "  [%d] %s  %d bytes  %s\n", art.Index, art.MimeType, len(art.Data), art.Handle.Ref)
	}

	selects := opts.selects
	if opts.saveAll {
		selects = nil
		for _, art := range artifacts {
			selects = append(selects, art.Index)
		}
	}
	if len(selects) > 0 {
		dir := opts.out
		if dir == "" {
			dir = filepath.Join(a.cfg.DataDir, "artifacts")
		}
		store := state.NewArtifactStore(dir)
		for _, i := range selects {
			art, err := orch.Artifact(i)
			if err != nil {
				return err
			}
			meta, err := store.Put(ctx, ref, art)
			if err != nil {
				return fmt.Errorf("save image %d: %w", i, err)
			}
			fmt.Fprintf(out, "Saved [%d] to %s (id %s)\n", i, meta.Path, meta.ID)
		}
	}

	if opts.serve {
		srv := preview.NewServer(orch, table, ref.String())
		fmt.Fprintf(out, "Preview at http://%s/ (Ctrl-C to stop)\n", a.cfg.Preview.Addr)
		if err := srv.ListenAndServe(ctx, a.cfg.Preview.Addr); err != nil {
			return fmt.Errorf("preview server: %w", err)
		}
	}
	return orch.Release()
}
