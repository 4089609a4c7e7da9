package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mlmdq/internal/app"
	"mlmdq/internal/query"
	"mlmdq/internal/store"
)

var kindShort = map[store.Kind]string{
	store.KindArtifact:      "artifacts",
	store.KindArtifactType:  "artifact types",
	store.KindExecution:     "executions",
	store.KindExecutionType: "execution types",
	store.KindContext:       "contexts",
	store.KindContextType:   "context types",
	store.KindEvent:         "events",
}

func countCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "count", Short: "Count artifacts/executions/contexts/events and their types"}
	for _, kind := range store.Kinds {
		cmd.AddCommand(countKindCmd(kind))
	}
	return cmd
}

func getCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "get", Short: "Get artifacts/executions/contexts/events and their types"}
	for _, kind := range store.Kinds {
		cmd.AddCommand(getKindCmd(kind))
	}
	return cmd
}

func countKindCmd(kind store.Kind) *cobra.Command {
	var p query.Params
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: "Count " + kindShort[kind],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := p.Filter(kind)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Query.Count(ctx, kind, f)
				if err != nil {
					return err
				}
				return printJSON(cmd, n)
			})
		},
	}
	addFilterFlags(cmd.Flags(), kind, &p, false)
	return cmd
}

func getKindCmd(kind store.Kind) *cobra.Command {
	var p query.Params
	var output string
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: "Get " + kindShort[kind],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "table" {
				return fmt.Errorf("--output must be json or table")
			}
			f, err := p.Filter(kind)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Query.Get(ctx, kind, f)
				if err != nil {
					return err
				}
				if output == "table" {
					return printTable(cmd.OutOrStdout(), items)
				}
				return printJSON(cmd, items)
			})
		},
	}
	addFilterFlags(cmd.Flags(), kind, &p, true)
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or table")
	return cmd
}

// addFilterFlags registers the flags that make sense for kind. Paging and
// ordering flags only apply to get.
func addFilterFlags(fs *pflag.FlagSet, kind store.Kind, p *query.Params, paging bool) {
	switch kind {
	case store.KindArtifactType, store.KindExecutionType, store.KindContextType:
		fs.Int64SliceVar(&p.IDs, "id", nil, "type id (repeatable)")
		fs.StringVar(&p.Name, "name", "", "type name")
	case store.KindEvent:
		fs.Int64SliceVar(&p.Artifacts, "artifact", nil, "artifact id (repeatable)")
		fs.Int64SliceVar(&p.Executions, "execution", nil, "execution id (repeatable)")
		fs.StringSliceVar(&p.EventTypes, "event-type", nil, "event type, e.g. INPUT or OUTPUT (repeatable)")
		fs.Int64Var(&p.Context, "context", 0, "only events of executions in this context")
		fs.StringVar(&p.CreateTimeStart, "time-start", "", "event time at or after (RFC 3339, date or epoch ms)")
		fs.StringVar(&p.CreateTimeEnd, "time-end", "", "event time before")
	default:
		fs.Int64SliceVar(&p.IDs, "id", nil, "id (repeatable)")
		fs.StringSliceVar(&p.Types, "type", nil, "type name (repeatable)")
		fs.StringVar(&p.Name, "name", "", "name")
		fs.StringVar(&p.CreateTimeStart, "ctime-start", "", "created at or after (RFC 3339, date or epoch ms)")
		fs.StringVar(&p.CreateTimeEnd, "ctime-end", "", "created before")
		fs.StringVar(&p.UpdateTimeStart, "mtime-start", "", "updated at or after")
		fs.StringVar(&p.UpdateTimeEnd, "mtime-end", "", "updated before")
		switch kind {
		case store.KindArtifact:
			fs.StringVar(&p.URI, "uri", "", "artifact URI")
			fs.Int64Var(&p.Context, "context", 0, "context id the artifact is attributed to")
		case store.KindExecution:
			fs.Int64Var(&p.Context, "context", 0, "context id the execution is associated with")
		case store.KindContext:
			fs.Int64SliceVar(&p.Artifacts, "artifact", nil, "contexts holding this artifact (repeatable)")
			fs.Int64SliceVar(&p.Executions, "execution", nil, "contexts holding this execution (repeatable)")
		}
	}
	if !paging {
		return
	}
	fs.StringVar(&p.OrderBy, "order-by", "id", "order field: id, name, ctime or mtime")
	fs.BoolVar(&p.Asc, "asc", false, "ascending order (default descending)")
	fs.IntVar(&p.Limit, "limit", 0, "maximum number of results (0 = all)")
	fs.IntVar(&p.Offset, "offset", 0, "skip this many results")
}
