/*
Package cli provides helpers shared by the quotaflow commands.

Output formatting renders a Table as aligned text, CSV or JSON:

	table := &cli.Table{Headers: []string{"PROVIDER", "USAGE"}, Data: usage}
	table.AddRow("aws_lambda", "25.0%")
	if err := cli.NewFormatter(cli.FormatText).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Batch executions report progress on stderr:

	progress := cli.NewProgressReporter(nil)
	progress.Start(count)
	progress.Update(done, failed)
	progress.Finish()

SetupSignalHandler cancels a context on SIGINT or SIGTERM, and ExitCode
maps command errors to process exit codes.
*/
package cli
