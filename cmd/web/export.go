package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"sales-dashboard/internal/api"
	"sales-dashboard/internal/auth"
	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/storage"
)

const cliSession = "cli"

type exportOptions struct {
	email     string
	password  string
	output    string
	category  string
	startDate string
	endDate   string
	quiet     bool
}

func (a *app) exportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a sales export as CSV",
		Long: `Signs in to the analytics backend and writes the sales export to disk.
The password is read from DASHBOARD_PASSWORD when --password is not given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.password == "" {
				opts.password = os.Getenv("DASHBOARD_PASSWORD")
			}
			path, err := a.export(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.Printf("Exported to %s\n", path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.email, "email", "", "account email")
	flags.StringVar(&opts.password, "password", "", "account password")
	flags.StringVarP(&opts.output, "output", "o", "", "output file or directory (default: the backend's file name)")
	flags.StringVar(&opts.category, "category", "", "only this category")
	flags.StringVar(&opts.startDate, "start-date", "", "first day, YYYY-MM-DD")
	flags.StringVar(&opts.endDate, "end-date", "", "last day, YYYY-MM-DD")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "no progress bar")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// export signs in with a throwaway in-memory store, so nothing the CLI
// does touches the server's durable sessions.
func (a *app) export(ctx context.Context, opts exportOptions, progress io.Writer) (string, error) {
	if opts.password == "" {
		return "", fmt.Errorf("a password is required")
	}

	httpClient := backendClient(a.cfg.Backend)
	tokens := storage.NewMemory().Scope(cliSession)
	state := auth.New(tokens, a.cfg.Backend.BaseURL, httpClient, a.logger)
	if err := state.Login(ctx, opts.email, opts.password); err != nil {
		return "", fmt.Errorf("login: %s", apperrors.UserMessage(err, "Login failed"))
	}

	client := api.NewClient(a.cfg.Backend.BaseURL, httpClient, tokens, a.logger)
	export, err := client.ExportSales(ctx, models.SearchParams{
		Category:  opts.category,
		StartDate: opts.startDate,
		EndDate:   opts.endDate,
	})
	if err != nil {
		return "", fmt.Errorf("export: %s", apperrors.UserMessage(err, "Failed to export data"))
	}

	path := exportPath(opts.output, export.Filename)
	if err := writeExport(path, export.Data, progress, opts.quiet); err != nil {
		return "", err
	}
	a.logger.Info("export written", "path", path, "bytes", len(export.Data))
	return path, nil
}

// exportPath resolves --output: empty means the backend's name in the
// working directory, an existing directory gets that name inside it.
func exportPath(output, filename string) string {
	if output == "" {
		return filename
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, filename)
	}
	return output
}

func writeExport(path string, data []byte, progress io.Writer, quiet bool) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	var dst io.Writer = f
	if !quiet {
		bar := progressbar.NewOptions64(int64(len(data)),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("Writing "+filepath.Base(path)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(progress) }),
		)
		dst = io.MultiWriter(f, bar)
	}

	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
