package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"mlmdq/internal/mlmd"
)

// printTable renders a Get result as a text table.
func printTable(w io.Writer, items any) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	switch v := items.(type) {
	case []mlmd.Artifact:
		tw.AppendHeader(table.Row{"ID", "Type", "Name", "URI", "State", "Created", "Properties"})
		for _, a := range v {
			tw.AppendRow(table.Row{a.ID, a.TypeName, a.Name, a.URI, a.State, formatTime(a.CreateTime), formatProps(a.Properties, a.CustomProperties)})
		}
	case []mlmd.Execution:
		tw.AppendHeader(table.Row{"ID", "Type", "Name", "State", "Created", "Properties"})
		for _, e := range v {
			tw.AppendRow(table.Row{e.ID, e.TypeName, e.Name, e.State, formatTime(e.CreateTime), formatProps(e.Properties, e.CustomProperties)})
		}
	case []mlmd.Context:
		tw.AppendHeader(table.Row{"ID", "Type", "Name", "Created", "Properties"})
		for _, c := range v {
			tw.AppendRow(table.Row{c.ID, c.TypeName, c.Name, formatTime(c.CreateTime), formatProps(c.Properties, c.CustomProperties)})
		}
	case []mlmd.Event:
		tw.AppendHeader(table.Row{"Artifact", "Execution", "Type", "Time"})
		for _, e := range v {
			tw.AppendRow(table.Row{e.ArtifactID, e.ExecutionID, e.Type, formatTime(e.Timestamp)})
		}
	case []mlmd.Type:
		tw.AppendHeader(table.Row{"ID", "Name", "Kind", "Properties"})
		for _, t := range v {
			tw.AppendRow(table.Row{t.ID, t.Name, t.Kind, formatSchema(t.Properties)})
		}
	default:
		return fmt.Errorf("no table layout for %T", items)
	}
	tw.Render()
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() || t.UnixMilli() == 0 {
		return ""
	}
	return t.Format(time.RFC3339)
}

// formatProps lists properties as name=value, custom ones marked with '*'.
func formatProps(props, custom map[string]mlmd.Value) string {
	var parts []string
	for _, name := range sortedKeys(props) {
		parts = append(parts, name+"="+valueString(props[name]))
	}
	for _, name := range sortedKeys(custom) {
		parts = append(parts, "*"+name+"="+valueString(custom[name]))
	}
	return strings.Join(parts, " ")
}

func formatSchema(props map[string]string) string {
	names := sortedKeys(props)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ":" + props[name]
	}
	return strings.Join(parts, " ")
}

func valueString(v mlmd.Value) string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "?"
	}
	return string(b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
