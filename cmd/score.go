package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/gradecast/internal/domain/records"
	"github.com/okian/gradecast/pkg/logger"
	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "score FILE",
		Short: "Run one CSV file through the pipeline and print the results",
		Long: `Score every well-formed row of FILE, store the batch in the configured
primary store, mirror the rows and write the results CSV to stdout or --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the results CSV to this file instead of stdout")
	return cmd
}

func runScore(cmd *cobra.Command, path, out string) error {
	// stdout carries the CSV.
	cfg, log, err := bootstrap(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	// Stop drains queued mirror jobs before returning.
	defer svc.Stop()

	res, err := svc.ProcessBatch(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	log.Info(ctx, "batch scored",
		logger.String("batch_id", res.ID),
		logger.Int("processed", len(res.Outcomes)),
		logger.Int("skipped", res.Skipped),
		logger.Int("pass", res.PassCount()),
		logger.Int("fail", res.FailCount()),
	)

	return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
		return records.WriteResults(w, res.Outcomes)
	})
}

func newTemplateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the blank input template CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeTo(cmd.OutOrStdout(), out, records.WriteTemplate)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the template to this file instead of stdout")
	return cmd
}

// writeTo runs write against the named file, or stdout when name is empty.
func writeTo(stdout io.Writer, name string, write func(io.Writer) error) error {
	if name == "" {
		return write(stdout)
	}
	f, err := os.Create(name) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}
