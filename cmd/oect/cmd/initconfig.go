package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/RMahshie/oect/internal/device"
	"github.com/RMahshie/oect/internal/devicecfg"
	"github.com/RMahshie/oect/internal/ingest"
)

var force bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config <folder>",
	Short: "Write a config.cfg for a device folder",
	Long: `Generate config.cfg from the rig defaults and the dimensions, drain bias
and output gate voltages recorded in the folder's curve files.`,
	Args: cobra.ExactArgs(1),
	RunE: runInitConfig,
}

func init() {
	rootCmd.AddCommand(initConfigCmd)

	initConfigCmd.Flags().BoolVarP(&force, "force", "f", false,
		"replace an existing config file")
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	dir := args[0]
	path := filepath.Join(dir, devicecfg.FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to replace it", path)
	}

	folder, err := ingest.LoadFolder(dir)
	if err != nil {
		return err
	}

	cfg := devicecfg.Default()
	ds := device.New(cfg.Params(), device.DefaultOptions())
	if err := ds.Load(folder.Curves, folder.Errors...); err != nil {
		return fmt.Errorf("load %s: %w", dir, err)
	}
	cfg.Update(ds.Observation())

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
