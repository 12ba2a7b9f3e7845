package main

import (
	"fmt"

	"github.com/matchforge/simcore/cmd/simcore/internal/out"
	"github.com/matchforge/simcore/pkg/container"
	"github.com/spf13/cobra"
)

var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Install or reload modules in a freshly created container",
}

var moduleInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the demo module into a new container",
	RunE:  runModuleInstall,
}

var moduleReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Install the demo module, then atomically reload with it removed",
	RunE:  runModuleReload,
}

func init() {
	moduleCmd.AddCommand(moduleInstallCmd, moduleReloadCmd)
}

func runModuleInstall(cmd *cobra.Command, args []string) error {
	c := container.New("cli-module-install", container.DefaultConfig())
	if err := c.Modules().Install(demoModule()); err != nil {
		return err
	}

	installed := c.Modules().Installed()
	if out.Format() != "table" {
		out.PrintJSON(installed)
		return nil
	}
	out.PrintMessage(fmt.Sprintf("installed modules: %v", installed))
	return nil
}

func runModuleReload(cmd *cobra.Command, args []string) error {
	c := container.New("cli-module-reload", container.DefaultConfig())
	if err := c.Modules().Install(demoModule()); err != nil {
		return err
	}
	before := c.Modules().Installed()

	if err := c.Modules().Reload(nil); err != nil {
		return err
	}
	after := c.Modules().Installed()

	if out.Format() != "table" {
		out.PrintJSON(map[string][]string{"before": before, "after": after})
		return nil
	}
	out.PrintMessage(fmt.Sprintf("before reload: %v", before))
	out.PrintMessage(fmt.Sprintf("after reload: %v", after))
	return nil
}
