package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scp/internal/store"
)

// SnapshotEntry describes one stored snapshot.
type SnapshotEntry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Elements int    `json:"elements"`
}

// SnapshotList is the output of "scp snapshot <db>".
type SnapshotList struct {
	Snapshots []SnapshotEntry `json:"snapshots"`
	Steps     map[string]int  `json:"steps_by_kind"`
}

func (l SnapshotList) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d snapshot(s)\n", len(l.Snapshots))
	for _, s := range l.Snapshots {
		fmt.Fprintf(&b, "  %4d %-40s %d element(s)\n", s.ID, s.Name, s.Elements)
	}
	if len(l.Steps) > 0 {
		b.WriteString("\nsteps by kind\n")
		for _, k := range slices.Sorted(maps.Keys(l.Steps)) {
			fmt.Fprintf(&b, "  %-14s %d\n", k, l.Steps[k])
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// SnapshotDetail counts the elements of one snapshot.
type SnapshotDetail struct {
	Name        string `json:"name"`
	Nodes       int    `json:"nodes"`
	Links       int    `json:"links"`
	Edges       int    `json:"edges"`
	Identifiers int    `json:"identifiers"`
	Labels      int    `json:"labels"`
}

func (d SnapshotDetail) String() string {
	return fmt.Sprintf("snapshot %s\n  nodes       %d\n  links       %d\n  edges       %d\n  identifiers %d\n  labels      %d",
		d.Name, d.Nodes, d.Links, d.Edges, d.Identifiers, d.Labels)
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <db> [name]",
		Short: "Inspect stored graph snapshots",
		Long: `List the graph snapshots and step counts stored in a database.
With a snapshot name, restore that snapshot and count its elements.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return runSnapshot(rootOpts, args[0], name, cmd)
		},
	}
	return cmd
}

func runSnapshot(opts *RootOptions, path, name string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if name != "" {
		detail, err := describeSnapshot(ctx, st, name)
		if errors.Is(err, store.ErrNotFound) {
			return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("snapshot %s not found", name))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load snapshot", err)
		}
		return formatter.Success(detail)
	}

	infos, err := st.ListSnapshots(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	steps, err := st.CountStepsByKind(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count steps", err)
	}
	list := SnapshotList{Snapshots: make([]SnapshotEntry, len(infos)), Steps: steps}
	for i, info := range infos {
		list.Snapshots[i] = SnapshotEntry{ID: info.ID, Name: info.Name, Elements: info.Count}
	}
	return formatter.Success(list)
}

func describeSnapshot(ctx context.Context, st *store.Store, name string) (SnapshotDetail, error) {
	g, err := st.LoadGraph(ctx, name)
	if err != nil {
		return SnapshotDetail{}, err
	}
	d := SnapshotDetail{Name: name}
	for _, r := range g.Snapshot() {
		switch {
		case r.Type.IsLink():
			d.Links++
		case r.Type.IsEdge():
			d.Edges++
		default:
			d.Nodes++
		}
		if r.Identifier != "" {
			d.Identifiers++
		}
		if r.Label != "" {
			d.Labels++
		}
	}
	return d, nil
}

// openExisting opens a database that must already exist; store.Open would
// otherwise create an empty one.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
