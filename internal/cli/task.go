package cli

import (
	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для отдельных задач.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Run single tasks",
	}

	cmd.AddCommand(newTaskRunCmd(clientFn, outputFn))
	return cmd
}

func newTaskRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var dataFile string
	var data []string

	cmd := &cobra.Command{
		Use:   "run TASK_FILE",
		Short: "Run a single task synchronously against a data store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := readTask(args[0])
			if err != nil {
				return err
			}

			store, err := readData(dataFile)
			if err != nil {
				return err
			}
			if store, err = mergeInputs(store, data); err != nil {
				return err
			}

			result, err := client.RunTask(RunTaskRequest{Task: def, DataStore: store})
			if err != nil {
				return err
			}

			out.Value(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFile, "data-file", "", "Data store as JSON or YAML file")
	cmd.Flags().StringSliceVar(&data, "data", nil, "Data store values as KEY=VALUE (repeatable)")

	return cmd
}
