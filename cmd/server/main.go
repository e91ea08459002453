package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/JustJay7/docket-merger/internal/api"
	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/report"
	"github.com/JustJay7/docket-merger/internal/server"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docket-merger",
		Short:         "Merge parsed court docket reports into the canonical store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP ingest server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Run database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				if err := database.Migrate(a.db); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				a.log.Info("Database migrations completed successfully")
				return nil
			},
		},
		&cobra.Command{
			Use:   "merge-docket <file.json>",
			Short: "Merge a docket upload read from a JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var upload report.DocketUpload
				if err := readJSON(args[0], &upload); err != nil {
					return err
				}
				a, err := newApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				res, err := a.merger.MergeDocket(cmd.Context(), &upload)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"docket_id":         res.Docket.ID,
					"created":           res.Created,
					"content_updated":   res.ContentUpdated,
					"documents_created": len(res.DocumentsCreated),
				})
			},
		},
		&cobra.Command{
			Use:   "merge-attachments <file.json>",
			Short: "Merge an attachment page upload read from a JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var upload report.AttachmentPageUpload
				if err := readJSON(args[0], &upload); err != nil {
					return err
				}
				a, err := newApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				res, err := a.merger.MergeAttachmentPage(cmd.Context(), &upload)
				if err != nil {
					return err
				}
				ids := make([]uint, 0, len(res.Documents))
				for _, doc := range res.Documents {
					ids = append(ids, doc.ID)
				}
				return printJSON(cmd, map[string]any{
					"docket_entry_id": res.Entry.ID,
					"document_ids":    ids,
				})
			},
		},
	)
	return root
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	h := api.NewHandlers(a.db, a.merger, a.judgeCache.Stats, a.log)
	srv := server.New(a.cfg, h, a.log, a.Close)

	a.log.Info("Starting docket merger",
		"host", a.cfg.Host,
		"port", a.cfg.Port,
		"archive", a.cfg.ArchiveBackend,
	)
	return srv.Run()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
