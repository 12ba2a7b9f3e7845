package main

import (
	"encoding/json"
	"fmt"

	"github.com/matchforge/simcore/cmd/simcore/internal/out"
	"github.com/matchforge/simcore/pkg/command"
	"github.com/matchforge/simcore/pkg/container"
	"github.com/spf13/cobra"
)

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Submit commands to a demo container",
}

var commandEnqueueCmd = &cobra.Command{
	Use:   "enqueue <name>",
	Short: "Enqueue a command by name with JSON params, advance one tick, and report handler errors",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommandEnqueue,
}

func init() {
	commandEnqueueCmd.Flags().String("params", "{}", "JSON object of command parameters")
	commandCmd.AddCommand(commandEnqueueCmd)
}

func runCommandEnqueue(cmd *cobra.Command, args []string) error {
	name := args[0]
	paramsJSON, _ := cmd.Flags().GetString("params")

	var params map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return fmt.Errorf("invalid --params JSON: %w", err)
	}

	cfg := container.DefaultConfig()
	cfg.TickIntervalMS = 0
	c := container.New("cli-command", cfg)
	if err := c.Modules().Install(demoModule()); err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}

	match := c.Matches().Create()
	if name == "spawn" {
		params["entity"] = c.Matches().SpawnEntity(match)
	}

	if err := c.Commands().Enqueue(command.Command{Name: name, Params: params}); err != nil {
		return fmt.Errorf("enqueue rejected: %w", err)
	}
	if err := c.Ticks().Advance(); err != nil {
		return err
	}

	errs := c.Commands().Errors(10)
	if out.Format() != "table" {
		out.PrintJSON(map[string]any{"enqueued": name, "tick": c.Ticks().Current(), "handlerErrors": errs})
		return nil
	}

	out.PrintMessage(fmt.Sprintf("enqueued %q, advanced to tick %d", name, c.Ticks().Current()))
	for _, e := range errs {
		out.PrintMessage(fmt.Sprintf("  handler error: %s (tick %d): %v", e.Command, e.Tick, e.Err))
	}
	return nil
}
