package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	initOut   string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the resolved configuration to a YAML file",
	Long:  "Writes the fully resolved configuration, defaults plus environment overrides, as a starter config.yaml to edit by hand.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !initForce {
			if _, err := os.Stat(initOut); err == nil {
				return eris.Errorf("%s already exists, use --force to overwrite", initOut)
			}
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		if err := os.WriteFile(initOut, out, 0o644); err != nil {
			return eris.Wrap(err, "write config")
		}

		zap.L().Info("config written", zap.String("path", initOut))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initOut, "out", "config.yaml", "destination file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}
