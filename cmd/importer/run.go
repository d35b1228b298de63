package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jaki95/feedback-importer/internal/batch"
	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/notify"
	"github.com/jaki95/feedback-importer/internal/steps"
	"github.com/jaki95/feedback-importer/internal/workflow"
)

type runOptions struct {
	file        string
	source      string
	promptFile  string
	dedup       []string
	autoConfirm bool
	pipeline    bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Upload a file and take it through every import step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runImport(runCtx, ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "CSV, JSON or HTML export to import")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Source platform of the feedback")
	cmd.Flags().StringSliceVar(&opts.dedup, "dedup", nil, "Columns that identify duplicate records")
	cmd.Flags().StringVar(&opts.promptFile, "prompt-file", "", "Replace the generated mapping prompt with this file")
	cmd.Flags().BoolVarP(&opts.autoConfirm, "auto-confirm", "y", false, "Confirm the suggested mapping without asking")
	cmd.Flags().BoolVar(&opts.pipeline, "pipeline", false, "Start semantic processing after a successful import")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func newWorkflow(c *commandContext, cmd *cobra.Command, term *terminal) *workflow.Orchestrator {
	cfg := c.cfg.Client
	return workflow.New(c.newClient(cmd), workflow.Options{
		Notifier:            notify.Multi{notify.Log{}, term},
		PollInterval:        cfg.PollInterval,
		AutosaveDelay:       cfg.AutosaveDelay,
		UploadCompleteDelay: cfg.UploadCompleteDelay,
	})
}

func runImport(ctx context.Context, c *commandContext, cmd *cobra.Command, opts runOptions) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	term := &terminal{out: out, colorize: colorize}

	o := newWorkflow(c, cmd, term)
	defer o.Close()

	file, err := batch.OpenFile(opts.file)
	if err != nil {
		return err
	}
	defer file.Close()

	attachUploadBar(o, term, file.Name, colorize)
	if err := o.Upload(ctx, file, opts.source); err != nil {
		return err
	}
	st, err := waitFor(ctx, o, func(s workflow.State) bool { return s.Current != steps.Upload })
	if err != nil {
		return err
	}
	term.Println("Batch " + st.BatchID + " created.")

	if err := o.LoadDataPreview(ctx); err != nil {
		return err
	}
	st = o.Snapshot()
	if p := st.DataPreview; p != nil {
		term.Section("Columns ("+strconv.Itoa(p.TotalRows)+" rows)", renderColumnStats(p.Stats))
		term.Section("Preview", renderDataPreview(p))
	}

	if err := o.BuildPrompt(ctx, opts.dedup); err != nil {
		return err
	}
	st = o.Snapshot()

	if st.Current == steps.Prompting {
		if opts.promptFile != "" {
			text, err := os.ReadFile(opts.promptFile)
			if err != nil {
				return fmt.Errorf("failed to read prompt file: %w", err)
			}
			o.UpdatePrompt(string(text))
		}
		if err := o.TriggerMapping(ctx); err != nil {
			return err
		}
		term.Println("Generating column mapping...")
		if st, err = waitFor(ctx, o, settled); err != nil {
			return err
		}
		if st.Current != steps.Mapping {
			return stepError(st)
		}
	}

	if st.Mapping == nil {
		if err := o.LoadMappingPreview(ctx); err != nil {
			return err
		}
		st = o.Snapshot()
	}
	if st.Mapping == nil || len(st.Mapping.Mappings) == 0 {
		return errors.New("the service returned no column mapping")
	}
	term.Section("Suggested mapping", renderMapping(st.Mapping))

	if !opts.autoConfirm {
		ok, err := confirm(cmd.InOrStdin(), out, "Confirm this mapping?")
		if err != nil {
			return err
		}
		if !ok {
			term.Println("Mapping not confirmed. Check the batch later with: importer status --batch " + st.BatchID)
			return nil
		}
	}

	if err := o.ConfirmMapping(ctx, st.Mapping.Targets()); err != nil {
		return err
	}
	term.Println("Importing records...")
	if st, err = waitFor(ctx, o, settled); err != nil {
		return err
	}
	if !st.Terminal() {
		return stepError(st)
	}
	if st.Result == nil {
		if err := o.LoadResultPreview(ctx); err != nil {
			return err
		}
		st = o.Snapshot()
	}
	printOutcome(term, st)

	if opts.pipeline && st.BatchStatus != domain.BatchFailed {
		if err := o.TriggerPipeline(ctx); err != nil {
			return err
		}
		if st, err = waitFor(ctx, o, settled); err != nil {
			return err
		}
		term.Println("Pipeline " + st.PipelineStatus + ". Follow it with: importer status --batch " + st.BatchID)
	}
	return nil
}

func printOutcome(term *terminal, st workflow.State) {
	term.Section("Steps", renderBoard(st, term.colorize))
	if st.Result != nil {
		term.Section("Imported records", renderResult(st.Result))
	}
	if s := summary(st.Progress); s != "" {
		term.Println(s)
	}
	if st.ErrorMessage != "" {
		term.Println(st.ErrorMessage)
	}
}

func stepError(st workflow.State) error {
	if st.ErrorMessage != "" {
		return errors.New(st.ErrorMessage)
	}
	return fmt.Errorf("batch %s stopped at status %q", st.BatchID, st.BatchStatus)
}
