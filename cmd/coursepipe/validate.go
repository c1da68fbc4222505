package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johntango/coursepipeline/config"
	pipelinecfg "github.com/johntango/coursepipeline/pipeline/config"
)

func newValidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and topology without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			topology, err := pipelinecfg.Load(cfg.Paths.TopologyPath)
			if err != nil {
				return err
			}
			if err := topology.Validate(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "topology '%s' is valid: %d stages, %d queues\n",
				topology.Name, len(topology.Stages), len(topology.Queues()))
			return nil
		},
	}
}
