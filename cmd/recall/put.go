package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/recall/internal/service"
	"github.com/scrypster/recall/pkg/types"
)

func newPutCmd() *cobra.Command {
	var (
		memType     string
		importance  float64
		category    string
		tags        []string
		autoResolve bool
		imagePath   string
	)

	cmd := &cobra.Command{
		Use:   "put <user-id> <text>",
		Short: "Store a memory for a user",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			opts := service.WriteOptions{
				Type:                 types.MemoryType(memType),
				Importance:           importance,
				Category:             category,
				Tags:                 tags,
				AutoResolveConflicts: autoResolve,
			}
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				opts.Media = &types.Media{
					Kind:  types.MediaImage,
					Image: &types.ImageMedia{OriginalPath: imagePath, SizeBytes: int64(len(data))},
				}
				opts.MediaData = data
			}

			text := strings.Join(args[1:], " ")
			res, err := e.svc.Write(cmd.Context(), args[0], text, opts)
			if err != nil {
				return err
			}

			if !res.Written {
				fmt.Println("Write held: conflicting facts detected.")
				for _, c := range res.Conflicts {
					fmt.Printf("  %s: %q -> %q\n", c.Key, c.Prev, c.Next)
				}
				fmt.Println("Re-run with --auto-resolve to write anyway.")
				return nil
			}

			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&memType, "type", string(types.ShortTerm), "memory tier (short_term, mid_term, long_term, pinned, profile)")
	cmd.Flags().Float64Var(&importance, "importance", 0.5, "importance in [0,1]")
	cmd.Flags().StringVar(&category, "category", "", "category label")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	cmd.Flags().BoolVar(&autoResolve, "auto-resolve", false, "write through fact conflicts")
	cmd.Flags().StringVar(&imagePath, "image", "", "attach an image file (text argument becomes the caption)")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <record-id>",
		Short: "Fetch one memory by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			rec, ok := e.svc.Get(args[0])
			if !ok {
				return fmt.Errorf("record %s not found", args[0])
			}
			// Embeddings are noise on a terminal.
			rec.PrimaryEmbedding = nil
			rec.SecondaryEmbedding = nil
			out, _ := json.MarshalIndent(rec, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <record-id>",
		Short: "Delete one memory by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			if !e.svc.Forget(cmd.Context(), args[0]) {
				fmt.Printf("Record %s not found.\n", args[0])
				return nil
			}
			fmt.Printf("Record %s deleted.\n", args[0])
			return nil
		},
	}
}
