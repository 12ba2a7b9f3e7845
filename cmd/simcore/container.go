package main

import (
	"fmt"

	"github.com/matchforge/simcore/cmd/simcore/internal/out"
	"github.com/matchforge/simcore/pkg/container"
	"github.com/matchforge/simcore/pkg/containermanager"
	"github.com/spf13/cobra"
)

var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Manage simulation containers",
}

var containerCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a container and install the demo module into it",
	RunE:  runContainerCreate,
}

var containerLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List containers in a fresh manager (demonstrates the listing API)",
	RunE:  runContainerLs,
}

var containerRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Create then immediately destroy a container, printing its final state",
	RunE:  runContainerRm,
}

var containerPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Create, start, then pause a container, printing its state transitions",
	RunE:  runContainerPause,
}

var containerResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Create, start, pause, then resume a container",
	RunE:  runContainerResume,
}

func init() {
	containerCmd.AddCommand(containerCreateCmd, containerLsCmd, containerRmCmd, containerPauseCmd, containerResumeCmd)
}

// containerSummary is the stable shape printed by container subcommands,
// independent of table vs JSON/YAML output.
type containerSummary struct {
	ID    string `json:"id" yaml:"id"`
	State string `json:"state" yaml:"state"`
}

func summarize(c *container.Container) containerSummary {
	return containerSummary{ID: string(c.ID()), State: string(c.State())}
}

func runContainerCreate(cmd *cobra.Command, args []string) error {
	manager := containermanager.New()
	c := manager.Create(container.DefaultConfig())
	if err := c.Modules().Install(demoModule()); err != nil {
		return err
	}

	if out.Format() != "table" {
		out.PrintJSON(summarize(c))
		return nil
	}
	out.PrintMessage(fmt.Sprintf("created container %s (state: %s)", c.ID(), c.State()))
	return nil
}

func runContainerLs(cmd *cobra.Command, args []string) error {
	manager := containermanager.New()
	manager.Create(container.DefaultConfig())
	manager.Create(container.DefaultConfig())

	containers := manager.List()
	if out.Format() != "table" {
		summaries := make([]containerSummary, len(containers))
		for i, c := range containers {
			summaries[i] = summarize(c)
		}
		out.PrintJSON(summaries)
		return nil
	}

	for _, c := range containers {
		out.PrintMessage(fmt.Sprintf("%s\t%s", c.ID(), c.State()))
	}
	return nil
}

func runContainerRm(cmd *cobra.Command, args []string) error {
	manager := containermanager.New()
	c := manager.Create(container.DefaultConfig())
	if err := c.Start(); err != nil {
		return err
	}
	id := c.ID()
	if err := manager.Destroy(id); err != nil {
		return err
	}
	out.PrintMessage(fmt.Sprintf("destroyed container %s", id))
	return nil
}

func runContainerPause(cmd *cobra.Command, args []string) error {
	manager := containermanager.New()
	c := manager.Create(container.DefaultConfig())
	if err := c.Start(); err != nil {
		return err
	}
	if err := c.Pause(); err != nil {
		return err
	}
	out.PrintMessage(fmt.Sprintf("container %s paused (state: %s)", c.ID(), c.State()))
	return nil
}

func runContainerResume(cmd *cobra.Command, args []string) error {
	manager := containermanager.New()
	c := manager.Create(container.DefaultConfig())
	if err := c.Start(); err != nil {
		return err
	}
	if err := c.Pause(); err != nil {
		return err
	}
	if err := c.Resume(); err != nil {
		return err
	}
	out.PrintMessage(fmt.Sprintf("container %s resumed (state: %s)", c.ID(), c.State()))
	return nil
}
