package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/railsim/formation/internal/dispatcher"
	"github.com/railsim/formation/internal/logging"
	"github.com/railsim/formation/internal/scenario"
	"github.com/railsim/formation/internal/sim"
	"github.com/railsim/formation/internal/worker"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script>...",
	Short: "Replay command scripts against a fresh simulation and check their expectations",
	Long: `replay runs every script against its own in-memory simulation. After the
last step the script's expectations are checked and the formations rebuilt
from broadcasts alone are compared with the live ones.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setupRuntime(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		var failed []error
		for _, path := range args {
			script, err := scenario.Load(path)
			if err != nil {
				return err
			}
			if err := replayScript(script, cmd.OutOrStdout(), rt.Logger); err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", script.Name, err))
			}
		}
		return errors.Join(failed...)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

// replayScript runs one script and prints a PASS or FAIL line for it.
func replayScript(script *scenario.Script, out io.Writer, logger *slog.Logger) error {
	logger = logger.With("script", script.Name)
	mirror := scenario.NewMirror()

	simulation, err := sim.New(sim.Dependencies{Observer: mirror, Logger: logger}, sim.Options{})
	if err != nil {
		return err
	}
	d, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return err
	}
	defer d.Close()
	worker.NewManager(worker.Dependencies{Sim: simulation, Logger: logger}).RegisterHandlers(d)

	results, err := scenario.Run(d, script)
	if err == nil {
		err = errors.Join(
			scenario.Verify(simulation, script.Expect),
			mirror.Compare(simulation.Formations()),
		)
	}
	if err != nil {
		fmt.Fprintf(out, "FAIL %s after %d steps: %v\n", script.Name, len(results), err)
		return err
	}

	status := simulation.Status()
	fmt.Fprintf(out, "PASS %s: %d steps, %d formations, %d cars, %d broadcasts\n",
		script.Name, len(results), status.Formations, status.Cars, mirror.Updates())
	logger.Info("Script replayed", "steps", len(results), "ticks", status.Ticks)
	return nil
}
