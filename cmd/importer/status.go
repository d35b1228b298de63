package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jaki95/feedback-importer/internal/steps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var batchID string
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the import steps of an existing batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchID == "" {
				return errors.New("--batch is required")
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			term := &terminal{out: out, colorize: shouldColorize(out)}
			o := newWorkflow(ctx, cmd, term)
			defer o.Close()

			if err := o.Resume(runCtx, batchID); err != nil {
				return err
			}
			st := o.Snapshot()
			if watch {
				var err error
				if st, err = waitFor(runCtx, o, settled); err != nil {
					return err
				}
			}

			term.Println("Batch " + st.BatchID + ": " + string(st.BatchStatus))
			if st.PipelineStatus != "" {
				term.Println("Pipeline: " + st.PipelineStatus)
			}
			printOutcome(term, st)
			if st.Current == steps.Mapping && st.Mapping != nil {
				term.Section("Suggested mapping", renderMapping(st.Mapping))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&batchID, "batch", "b", "", "Batch identifier")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until the batch needs input or finishes")

	return cmd
}
