package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johntango/coursepipeline/config"
	pipelinecfg "github.com/johntango/coursepipeline/pipeline/config"
)

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-queue pending message counts",
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

			b, err := openBroker(cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			rows := make([]queueRow, 0, len(topology.Queues()))
			for _, queue := range topology.Queues() {
				depth, err := b.Depth(cmd.Context(), queue)
				if err != nil {
					return err
				}
				role := "interior"
				switch queue {
				case topology.Entry:
					role = "entry"
				case topology.Terminal:
					role = "terminal"
				case topology.Analytics:
					role = "analytics"
				}
				rows = append(rows, queueRow{Queue: queue, Role: role, Pending: depth})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderQueueTable(rows))
			return nil
		},
	}
}
