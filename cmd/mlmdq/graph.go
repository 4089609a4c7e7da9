package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mlmdq/internal/app"
	"mlmdq/internal/lineage"
	"mlmdq/internal/render"
)

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "graph", Short: "Generate provenance graphs in DOT (or JSON)"}
	cmd.PersistentFlags().String("format", "", "graph format: dot or json (default from config, dot)")
	cmd.PersistentFlags().Int("concurrency", 0, "parallel store requests per BFS level (default from config)")
	_ = viper.BindPFlag("graph-format", cmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("graph-concurrency", cmd.PersistentFlags().Lookup("concurrency"))
	cmd.AddCommand(graphLineageCmd())
	cmd.AddCommand(graphIOCmd())
	cmd.AddCommand(graphContextCmd())
	return cmd
}

func graphLineageCmd() *cobra.Command {
	var depth int
	var direction string
	cmd := &cobra.Command{
		Use:   "lineage <artifact-id>",
		Short: "Generate a graph showing the lineage of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("artifact", args[0])
			if err != nil {
				return err
			}
			if depth < -1 {
				return fmt.Errorf("--depth must not be negative")
			}
			dir, err := lineage.ParseDirection(direction)
			if err != nil {
				return err
			}
			return runGraph(cmd, app.GraphRequest{Kind: app.GraphLineage, ID: id, Depth: depth, Direction: dir})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", -1, "maximum number of execution hops (0 = unbounded, default from config)")
	cmd.Flags().StringVar(&direction, "direction", "upstream", "walk upstream (ancestry), downstream or both")
	return cmd
}

func graphIOCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "io <execution-id>",
		Short: "Generate a graph showing the input and output of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("execution", args[0])
			if err != nil {
				return err
			}
			return runGraph(cmd, app.GraphRequest{Kind: app.GraphIO, ID: id})
		},
	}
}

func graphContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context <context-id>",
		Short: "Generate a graph of a context's artifacts and executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("context", args[0])
			if err != nil {
				return err
			}
			return runGraph(cmd, app.GraphRequest{Kind: app.GraphContext, ID: id})
		},
	}
}

func runGraph(cmd *cobra.Command, req app.GraphRequest) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if f := viper.GetString("graph-format"); f != "" {
		cfg.Graph.Format = f
	}
	if n := viper.GetInt("graph-concurrency"); n > 0 {
		cfg.Graph.Concurrency = n
	}
	format, err := render.ParseFormat(cfg.Graph.Format)
	if err != nil {
		return err
	}
	return withConfiguredApp(cmd, cfg, func(ctx context.Context, a *app.App) error {
		g, err := a.Graph(ctx, req)
		if err != nil {
			return err
		}
		return render.Render(cmd.OutOrStdout(), g, format)
	})
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}
