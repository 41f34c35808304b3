// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package cli

import (
	"fmt"

	"github.com/petenewcomb/simflow"
	"github.com/spf13/cobra"
)

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the performance tool over every configured shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := runSweep(cmd.Context(), opts.cfg, opts.logger, cmd.OutOrStdout())
			return err
		},
	}
}

func newTranslateCommand(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Build the text workload trace from the sweep's reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTranslate(opts.cfg, nil, outPath, opts.logger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "trace file (default is the pipeline's workload input)")
	return cmd
}

func newPipelineCommand(opts *rootOptions) *cobra.Command {
	var skipConvert bool
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Compile, convert and run the simulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("skip-convert") {
				cfg.SkipConvert = skipConvert
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cfg, opts.logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&skipConvert, "skip-convert", false, "run on an already converted workload")
	return cmd
}

func newAllCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Sweep, translate, then run the simulator pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}
			total := 3
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "[1/%d] Running stage: sweep\n", total)
			shapes, err := runSweep(cmd.Context(), cfg, opts.logger, out)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(out, "[2/%d] Running stage: translate\n", total)
			if err := runTranslate(cfg, shapes, "", opts.logger, out); err != nil {
				return fmt.Errorf("translate: %w", err)
			}
			fmt.Fprintf(out, "[3/%d] Running stage: pipeline\n", total)
			if err := runPipeline(cmd.Context(), cfg, opts.logger, out, cmd.ErrOrStderr()); err != nil {
				return fmt.Errorf("pipeline: %w", err)
			}
			return nil
		},
	}
}

func newTopologyCommand(opts *rootOptions) *cobra.Command {
	var (
		nodes     int
		bandwidth string
		latency   string
		errorRate string
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Write an ns-3 ring topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := simflow.WriteRingTopology(opts.cfg.ProjectRoot, outPath, nodes, bandwidth, latency, errorRate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ring topology config written to %s\n", path)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&nodes, "nodes", "n", 8, "number of nodes in the ring")
	flags.StringVar(&bandwidth, "bandwidth", simflow.DefaultRingBandwidth, "link bandwidth")
	flags.StringVar(&latency, "latency", simflow.DefaultRingLatency, "link latency")
	flags.StringVar(&errorRate, "extra", simflow.DefaultRingErrorRate, "link error rate")
	flags.StringVarP(&outPath, "out", "o", "", "output file (default is under the project root)")
	return cmd
}
