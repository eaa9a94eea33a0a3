package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/registry"
	"github.com/user/pixledger/internal/types"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsShowCmd)

	modelsListCmd.Flags().String("owner", "", "only models created by this user")
	modelsListCmd.Flags().Bool("mine", false, "only models created by the logged-in user")
	modelsListCmd.MarkFlagsMutuallyExclusive("owner", "mine")

	modelsShowCmd.Flags().String("samples", "", "directory to write the sample images to")
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Browse trained models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		reg := registry.New(a.client)

		owner, _ := cmd.Flags().GetString("owner")
		if mine, _ := cmd.Flags().GetBool("mine"); mine {
			if owner, err = a.username(ctx); err != nil {
				return err
			}
		}

		var models []types.Model
		if owner != "" {
			models, err = reg.ListOwnedBy(ctx, owner)
		} else {
			models, err = reg.ListAll(ctx)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(models) == 0 {
			fmt.Fprintln(out, "No models found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tID\tCREATED\tGENERATE")
		for _, m := range models {
			target := registry.TargetFor(m)
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				target,
				m.ID,
				m.CreatedAt.Format("2006-01-02 15:04:05"),
				target.Path(),
			)
		}
		return w.Flush()
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <owner>/<name>",
	Short: "Show a model and its sample images",
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

		detail, err := registry.New(a.client).Get(cmd.Context(), ref)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		m := detail.Model
		fmt.Fprintf(out, "Model:    %s\n", ref)
		fmt.Fprintf(out, "ID:       %d\n", m.ID)
		fmt.Fprintf(out, "Created:  %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Hash:     %s\n", m.Hash)
		fmt.Fprintf(out, "Samples:  %d\n", len(detail.Samples))
		fmt.Fprintf(out, "Generate: pixledger generate %s\n", ref)

		dir, _ := cmd.Flags().GetString("samples")
		if dir == "" || len(detail.Samples) == 0 {
			return nil
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create samples dir: %w", err)
		}
		for i, data := range detail.Samples {
			path := filepath.Join(dir, fmt.Sprintf("sample-%d%s", i, sniffExtension(data)))
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("write sample: %w", err)
			}
			fmt.Fprintln(out, "wrote", path)
		}
		return nil
	},
}

func sniffExtension(data []byte) string {
	switch ct := http.DetectContentType(data); {
	case strings.HasPrefix(ct, "image/png"):
		return ".png"
	case strings.HasPrefix(ct, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(ct, "image/gif"):
		return ".gif"
	case strings.HasPrefix(ct, "image/webp"):
		return ".webp"
	}
	return ".bin"
}
