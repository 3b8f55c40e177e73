package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/connector/registry"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/transfer"
)

type cpFlags struct {
	ifExists    locator.IfExists
	schemaPath  string
	where       string
	temporaries []string
	fromArgs    []string
	toArgs      []string
	runID       string
}

func (a *app) cpCommand() *cobra.Command {
	var f cpFlags
	cmd := &cobra.Command{
		Use:   "cp [flags] SRC DEST",
		Short: "Copy a table from SRC to DEST",
		Long: `Copy a table from SRC to DEST.

Locators name a table or files, e.g. csv:data/users.csv, gs://bucket/dir/,
postgres://host/db#schema.table, mysql://host/db#table,
bigquery:project:dataset.table or snowflake:db.schema.table.

When --schema is omitted the schema is read from SRC, which must be a
database or warehouse table.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.copyTable(cmd.Context(), f, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.Var(&f.ifExists, "if-exists", "what to do when DEST exists: error, append or overwrite")
	flags.StringVar(&f.schemaPath, "schema", "", "portable schema JSON file")
	flags.StringVar(&f.where, "where", "", "SQL condition restricting the rows read from SRC")
	flags.StringArrayVar(&f.temporaries, "temporary", nil, "staging location such as gs://bucket/tmp/ (repeatable)")
	flags.StringArrayVar(&f.fromArgs, "from-arg", nil, "source driver argument key=value (repeatable)")
	flags.StringArrayVar(&f.toArgs, "to-arg", nil, "destination driver argument key=value (repeatable)")
	flags.StringVar(&f.runID, "run-id", "", "name of the per-run directory below each temporary location")
	_ = flags.MarkHidden("run-id")
	return cmd
}

func (a *app) copyTable(ctx context.Context, f cpFlags, srcArg, destArg string) error {
	src, err := registry.Parse(srcArg)
	if err != nil {
		return err
	}
	dest, err := registry.Parse(destArg)
	if err != nil {
		return err
	}
	fromArgs, err := a.driverArgs(src.Kind(), f.fromArgs)
	if err != nil {
		return err
	}
	toArgs, err := a.driverArgs(dest.Kind(), f.toArgs)
	if err != nil {
		return err
	}
	// Command line locations come first so they win over the file.
	temp, err := locator.NewTemporaryStorage(append(append([]string(nil), f.temporaries...), a.cfg.Temporaries...))
	if err != nil {
		return err
	}

	ctx = bridge.WithPool(ctx, bridge.NewPool(a.cfg.Performance.GetWorkers()))
	table, err := a.loadSchema(ctx, src, f.schemaPath, fromArgs)
	if err != nil {
		return err
	}

	if limit := a.cfg.Timeouts.Transfer; limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	opts := []transfer.Option{
		transfer.WithQuery(locator.Query{Where: f.where}),
		transfer.WithFromArgs(fromArgs),
		transfer.WithToArgs(toArgs),
		transfer.WithTemporary(temp),
		transfer.WithMaxStreams(a.cfg.Performance.MaxStreams),
	}
	if f.runID != "" {
		opts = append(opts, transfer.WithRunID(f.runID))
	}
	return transfer.Transfer(ctx, src, table, dest, f.ifExists, opts...)
}

// driverArgs merges configured defaults for kind with key=value pairs
func (a *app) driverArgs(kind locator.Kind, pairs []string) (locator.DriverArgs, error) {
	given, err := locator.ParseDriverArgs(pairs)
	if err != nil {
		return nil, err
	}
	args := locator.DriverArgs(a.cfg.DriverArgs(string(kind)))
	if kind == locator.KindCSV {
		if _, ok := args["chunk_size"]; !ok {
			args["chunk_size"] = strconv.Itoa(a.cfg.Performance.ChunkSize)
		}
	}
	for k, v := range given {
		args[k] = v
	}
	return args, nil
}

func (a *app) loadSchema(ctx context.Context, src locator.Locator, path string, args locator.DriverArgs) (*schema.Table, error) {
	if path != "" {
		return schema.LoadFile(path)
	}
	described, ok := src.(locator.SchemaSource)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "--schema is required when copying from %s", src.Kind())
	}
	if limit := a.cfg.Timeouts.Connection; limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}
	table, err := described.Schema(ctx, args)
	if err != nil {
		return nil, err
	}
	logger.Info("read schema from source",
		zap.String("source", src.String()),
		zap.Int("columns", len(table.Columns)))
	return table, nil
}
