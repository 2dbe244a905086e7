package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/promptflow/internal/domain"
)

// ErrJobFailed — отслеживаемый job завершился с ошибкой.
var ErrJobFailed = errors.New("job failed")

// NewJobCmd создаёт группу команд для управления job.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and track workflow jobs",
	}

	cmd.AddCommand(
		newJobSubmitCmd(clientFn, outputFn),
		newJobStatusCmd(clientFn, outputFn),
		newJobStopCmd(clientFn, outputFn),
		newJobWatchCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID string
	var inputFile string
	var inputs []string
	var watch bool

	cmd := &cobra.Command{
		Use:   "submit WORKFLOW_FILE",
		Short: "Submit a workflow for asynchronous execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := readWorkflow(args[0])
			if err != nil {
				return err
			}

			userInput, err := readData(inputFile)
			if err != nil {
				return err
			}
			if userInput, err = mergeInputs(userInput, inputs); err != nil {
				return err
			}

			id, err := client.SubmitJob(SubmitJobRequest{
				WorkflowID: workflowID,
				Workflow:   wf,
				UserInput:  userInput,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job submitted: %s", id))
			if !watch {
				out.Print([]string{"JOB_ID"}, [][]string{{id}}, map[string]string{"jobId": id})
				return nil
			}
			return watchJob(cmd, client, out, id)
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "Override workflow ID")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "User input as JSON or YAML file")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Stream progress until the job finishes")

	return cmd
}

func newJobStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(jobHeaders, [][]string{jobRow(job)}, job)
			return nil
		},
	}
}

func newJobStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop JOB_ID",
		Short: "Request a job to stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stopped, err := client.StopJob(args[0])
			if err != nil {
				return err
			}

			if stopped {
				out.Success(fmt.Sprintf("Stop requested: %s", args[0]))
			} else {
				out.Success(fmt.Sprintf("Job %s is not running", args[0]))
			}
			out.Print(
				[]string{"JOB_ID", "STOPPED"},
				[][]string{{args[0], strconv.FormatBool(stopped)}},
				map[string]bool{"stopped": stopped},
			)
			return nil
		},
	}
}

func newJobWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch JOB_ID",
		Short: "Stream job progress events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchJob(cmd, clientFn(), outputFn(), args[0])
		},
	}
}

// watchJob печатает события до финального. Для failed возвращает ErrJobFailed.
func watchJob(cmd *cobra.Command, client *Client, out *Output, id string) error {
	var last domain.ProgressEvent

	err := client.WatchJob(cmd.Context(), id, func(ev domain.ProgressEvent) {
		last = ev
		out.Event(ev)
	})
	if err != nil {
		return err
	}

	if last.IsTerminal() && last.Status == domain.JobStatusFailed {
		return fmt.Errorf("%w: %s", ErrJobFailed, last.Error)
	}
	return nil
}

var jobHeaders = []string{"ID", "WORKFLOW", "STATUS", "TASKS", "ATTEMPT", "CREATED", "ERROR"}

func jobRow(job *domain.Job) []string {
	return []string{
		job.ID.String(),
		job.WorkflowID,
		string(job.Status),
		fmt.Sprintf("%d/%d", job.Progress.CompletedTasks, job.Progress.TotalTasks),
		fmt.Sprintf("%d/%d", job.Attempt, job.MaxAttempts),
		job.CreatedAt.Format("2006-01-02 15:04:05"),
		job.Error,
	}
}
