package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/promptflow/internal/engine"
)

// ErrInvalidWorkflow — проверка workflow нашла ошибки.
var ErrInvalidWorkflow = errors.New("workflow is invalid")

// NewWorkflowCmd создаёт группу команд для workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflow definitions",
	}

	cmd.AddCommand(newWorkflowValidateCmd(clientFn, outputFn))
	return cmd
}

func newWorkflowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "validate WORKFLOW_FILE",
		Short: "Check a workflow for structural errors and print the execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := readWorkflow(args[0])
			if err != nil {
				return err
			}

			var report *engine.Report
			if remote {
				if report, err = clientFn().ValidateWorkflow(wf); err != nil {
					return err
				}
			} else {
				report = engine.Check(wf)
			}

			printReport(out, report)
			if !report.Valid {
				return ErrInvalidWorkflow
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Validate on the API server instead of locally")

	return cmd
}

func printReport(out *Output, report *engine.Report) {
	rows := make([][]string, 0, len(report.Order)+len(report.Errors)+len(report.Feedback))
	for i, id := range report.Order {
		rows = append(rows, []string{"order", strconv.Itoa(i+1) + ". " + id})
	}
	for _, e := range report.Errors {
		rows = append(rows, []string{"error", e})
	}
	for _, f := range report.Feedback {
		rows = append(rows, []string{"feedback", f})
	}

	out.Print([]string{"KIND", "DETAIL"}, rows, report)
	if report.Valid {
		out.Success("Workflow is valid")
	}
}
