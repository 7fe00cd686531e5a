package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/invtrack/internal/changeset"
	"github.com/roach88/invtrack/internal/entity"
	"github.com/roach88/invtrack/internal/store"
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// open starts a session, reporting failures through f.
func open(cmd *cobra.Command, opts *RootOptions, f *OutputFormatter) (*session, error) {
	sess, err := openSession(commandContext(cmd), opts)
	if err == nil {
		return sess, nil
	}
	code := ErrCodeOpenFailed
	if store.IsSchemaError(err) {
		code = ErrCodeSchema
	}
	_ = f.Error(code, fmt.Sprintf("failed to open database: %v", err), nil)
	return nil, WrapExitError(ExitCommandError, "failed to open database", err)
}

// InitResult reports the tables after init.
type InitResult struct {
	Tables []TableCount `json:"tables"`
}

// TableCount is the row count of one table.
type TableCount struct {
	Entity string `json:"entity"`
	Rows   int    `json:"rows"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create missing tables",
		Long: `Create every missing table, in dependency order. Tables created by this
run are filled with sample rows unless --no-seed is given. Existing tables
are left untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	sess, err := open(cmd, opts, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	var result InitResult
	for _, e := range sess.catalog.Entities() {
		snap, err := sess.store.FetchAll(commandContext(cmd), e.Name)
		if err != nil {
			return f.Fail("failed to read "+e.Name, err)
		}
		result.Tables = append(result.Tables, TableCount{Entity: e.Name, Rows: snap.Len()})
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	for _, t := range result.Tables {
		fmt.Fprintf(f.Writer, "%s: %d row(s)\n", t.Entity, t.Rows)
	}
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <entity>",
		Short: "Print a snapshot of an entity's rows",
		Long: `Print every row of an entity with its position and the snapshot token.

Change-sets refer to rows by these positions and carry the token so a commit
against a changed table is rejected.

Example:
  invtrack list inventory
  invtrack list products --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, args[0], cmd)
		},
	}
}

func runList(opts *RootOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	sess, err := open(cmd, opts, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	e, err := sess.catalog.Entity(name)
	if err != nil {
		return f.Fail("failed to list", err)
	}
	snap, err := sess.store.FetchAll(commandContext(cmd), e.Name)
	if err != nil {
		return f.Fail("failed to list "+e.Name, err)
	}

	if f.Format == "json" {
		return f.Success(snap)
	}
	return writeSnapshot(f.Writer, e, snap)
}

// writeSnapshot prints a snapshot as an aligned table.
func writeSnapshot(w io.Writer, e *entity.Entity, snap store.Snapshot) error {
	fmt.Fprintf(w, "snapshot: %s\n", snap.Token)

	idField := e.Identifier().Name
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\t%s\n", strings.Join(e.ColumnNames(), "\t"))
	for pos, rec := range snap.Records {
		cells := make([]string, len(e.Fields))
		for i, field := range e.Fields {
			if field.Name == idField {
				cells[i] = rec.ID
				continue
			}
			if v := rec.Values[field.Name]; v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\n", pos, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "columns <entity>",
		Short: "Print the column contract of an entity",
		Long: `Print label, editability, requirement, default and kind of every field.
Reference fields list the referenced entity's current values as options.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(rootOpts, args[0], cmd)
		},
	}
}

func runColumns(opts *RootOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	sess, err := open(cmd, opts, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	e, err := sess.catalog.Entity(name)
	if err != nil {
		return f.Fail("failed to describe columns", err)
	}
	p, err := sess.catalog.Columns(commandContext(cmd), e, sess.store)
	if err != nil {
		return f.Fail("failed to describe columns of "+e.Name, err)
	}

	if f.Format == "json" {
		return f.Success(p)
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "field\tlabel\tkind\teditable\trequired\tdefault\toptions")
	for _, fieldName := range p.Order {
		c := p.Columns[fieldName]
		def := ""
		if c.Default != nil {
			def = fmt.Sprint(c.Default)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
			fieldName, c.Label, c.Kind, c.Editable, c.Required, def, strings.Join(c.Options, ", "))
	}
	return tw.Flush()
}

// CommitResult reports a committed change-set.
type CommitResult struct {
	Entity   string           `json:"entity"`
	Counts   changeset.Counts `json:"counts"`
	Messages []string         `json:"messages"`
}

// CommitOptions holds flags for the commit command.
type CommitOptions struct {
	*RootOptions
	Changes string
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commit <entity>",
		Short: "Apply a change-set to an entity",
		Long: `Apply a change-set document in one transaction.

The document refers to rows by their position in the snapshot printed by
list and carries that snapshot's token:

  snapshot: 3f1c...
  edited:
    0: {quantity: 12}
  added:
    - {warehouse_name: Les Roquetes, product_name: Paper, quantity: 4}
  deleted: [2]

A row both edited and deleted is deleted. If the table changed since the
snapshot, nothing is applied and the commit exits with status 1.

Example:
  invtrack commit inventory --changes edits.yaml
  cat edits.json | invtrack commit inventory --changes -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Changes, "changes", "c", "", "change-set file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("changes")

	return cmd
}

func runCommit(opts *CommitOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	data, err := readChanges(cmd, opts.Changes)
	if err != nil {
		_ = f.Error(ErrCodeReadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read change-set", err)
	}
	cs, err := changeset.Parse(data)
	if err != nil {
		_ = f.Error(ErrCodeParseFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to parse change-set", err)
	}

	sess, err := open(cmd, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	ctx := commandContext(cmd)
	e, err := sess.catalog.Entity(name)
	if err != nil {
		return f.Fail("failed to commit", err)
	}
	snap, err := sess.store.FetchAll(ctx, e.Name)
	if err != nil {
		return f.Fail("failed to read "+e.Name, err)
	}
	if cs.Snapshot == "" && !cs.Empty() {
		f.VerboseLog("change-set has no snapshot token; positions resolve against the current table")
	}

	counts, err := changeset.Commit(ctx, sess.store, snap, cs, changeset.WithLogger(sess.logger))
	if err != nil {
		return f.Fail("commit rejected", err)
	}

	result := CommitResult{Entity: e.Name, Counts: counts, Messages: counts.Messages()}
	if f.Format == "json" {
		return f.Success(result)
	}
	if len(result.Messages) == 0 {
		fmt.Fprintln(f.Writer, "No changes")
		return nil
	}
	for _, msg := range result.Messages {
		fmt.Fprintln(f.Writer, msg)
	}
	return nil
}

func readChanges(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the table definitions for the configured driver",
		Long: `Print the CREATE TABLE statements derived from the entity catalog, in
dependency order. Nothing is executed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	catalog, err := entity.LoadCatalog()
	if err != nil {
		return f.Fail("failed to load catalog", err)
	}
	ddl, err := store.SchemaSQL(opts.Driver, catalog)
	if err != nil {
		return f.Fail("failed to build schema", err)
	}

	if f.Format == "json" {
		return f.Success(map[string]string{"driver": opts.Driver, "sql": ddl})
	}
	fmt.Fprintln(f.Writer, ddl)
	return nil
}
