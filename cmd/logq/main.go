package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/raj2399/Task-Evallo/internal/engine"
	"github.com/raj2399/Task-Evallo/internal/logger"
	"github.com/raj2399/Task-Evallo/internal/logs"
	"github.com/raj2399/Task-Evallo/internal/query"
	"github.com/raj2399/Task-Evallo/internal/validate"
	"github.com/raj2399/Task-Evallo/pkg/schema"
	"github.com/raj2399/Task-Evallo/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	addr    string
	dataDir string
)

// --- Cobra root and top-level commands ---

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "logq",
		Short: "Client for the logq log service",
		Long: `Client for the logq log service.

By default commands talk to a running logqd over its TCP protocol
(LOGQ_STORE_ADDR, default localhost:7001). With --data-dir they work
directly on the logs.json collection in that directory instead.

Environment Variables:
  LOGQ_STORE_ADDR    Address of the daemon (default: localhost:7001)
  LOGQ_DISABLE_TLS   Set to true to disable TLS`,
		SilenceUsage: true,
	}

	defaultAddr := os.Getenv("LOGQ_STORE_ADDR")
	if defaultAddr == "" {
		defaultAddr = "localhost:7001"
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", defaultAddr, "daemon TCP address")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "work on the local collection in this directory instead of a daemon")

	rootCmd.AddCommand(postCmd(), queryCmd(), dumpCmd(), exportCmd(), importCmd(), migrateCmd(), pingCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// backend is either a daemon connection or a local service over a file store.
type backend struct {
	client *sdk.Client
	local  *logs.Service
	store  sdk.LogStore
}

func openBackend() (*backend, error) {
	if dataDir == "" {
		client, err := sdk.Connect(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return &backend{client: client, store: client}, nil
	}

	store, err := engine.NewFileStore(filepath.Join(dataDir, "logs.json"))
	if err != nil {
		return nil, err
	}
	validator, err := validate.New()
	if err != nil {
		return nil, err
	}
	svc := logs.NewService(store, validator, logger.Discard())
	return &backend{local: svc, store: store}, nil
}

func (b *backend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

func (b *backend) ingest(raw []byte) (any, error) {
	if b.client != nil {
		reply, err := b.client.Ingest(raw)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(reply), nil
	}
	rec, err := b.local.Ingest(raw)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *backend) query(params map[string]string) (query.Result, error) {
	if b.client != nil {
		return b.client.Query(params)
	}
	return b.local.Search(query.ParseMap(params))
}

// importRecords appends recs in order. Locally the whole set is validated before
// anything is written; a daemon validates each INGEST itself.
func (b *backend) importRecords(recs []schema.LogRecord) (int, error) {
	if b.client != nil {
		return engine.Migrate(engine.NewMemStore(recs), b.client)
	}

	return ingestRecords(b.local, recs)
}

// ingestRecords re-submits decoded records through svc so they pass the schema gate again.
func ingestRecords(svc *logs.Service, recs []schema.LogRecord) (int, error) {
	raws := make([][]byte, 0, len(recs))
	for _, rec := range recs {
		raw, err := json.Marshal(rec)
		if err != nil {
			return 0, err
		}
		raws = append(raws, raw)
	}
	done, err := svc.IngestBatch(raws)
	return len(done), err
}

func postCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post [file]",
		Short: "Submit one JSON log record (or an array over TCP) from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			out, err := b.ingest(raw)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func queryCmd() *cobra.Command {
	params := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Filter, sort and page the collection (newest first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := map[string]string{}
			for key, v := range params {
				if *v != "" {
					values[key] = *v
				}
			}

			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.query(values)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	flags := []struct{ key, usage string }{
		{query.KeyLevel, "exact level (error, warn, info, debug)"},
		{query.KeyMessage, "case-insensitive substring of the message"},
		{query.KeyResourceID, "exact resource id"},
		{query.KeyTimestampStart, "inclusive lower time bound"},
		{query.KeyTimestampEnd, "inclusive upper time bound"},
		{query.KeyTraceID, "exact trace id"},
		{query.KeySpanID, "exact span id"},
		{query.KeyCommit, "exact commit"},
		{query.KeyPage, "page number (default 1)"},
		{query.KeyLimit, "page size (default 10)"},
	}
	for _, f := range flags {
		params[f.key] = cmd.Flags().String(f.key, "", f.usage)
	}
	return cmd
}

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every record in arrival order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			recs, err := b.store.ReadAll()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a zstd-compressed snapshot of the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			recs, err := b.store.ReadAll()
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := engine.WriteSnapshot(f, recs); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(recs), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "logs.json.zst", "snapshot file")
	return cmd
}

func importCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Append every record of a snapshot to the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()

			recs, err := engine.ReadSnapshot(f)
			if err != nil {
				return err
			}

			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := b.importRecords(recs)
			if err != nil {
				return fmt.Errorf("imported %d of %d records: %w", n, len(recs), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "logs.json.zst", "snapshot file")
	return cmd
}

func migrateCmd() *cobra.Command {
	var fromBackend, fromPath, toBackend, toPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy a local collection into another local backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := engine.Open(fromBackend, fromPath)
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := engine.Open(toBackend, toPath)
			if err != nil {
				return err
			}
			defer dst.Close()

			recs, err := src.ReadAll()
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}
			validator, err := validate.New()
			if err != nil {
				return err
			}
			n, err := ingestRecords(logs.NewService(dst, validator, logger.Discard()), recs)
			if err != nil {
				return fmt.Errorf("migrated %d records: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d records\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&fromBackend, "from", engine.BackendFile, "source backend (file, sqlite)")
	cmd.Flags().StringVar(&fromPath, "from-path", "./data/logs.json", "source path")
	cmd.Flags().StringVar(&toBackend, "to", engine.BackendSQLite, "destination backend (file, sqlite)")
	cmd.Flags().StringVar(&toPath, "to-path", "./data/logs.db", "destination path")
	return cmd
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sdk.Connect(addr)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Ping(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PONG")
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(bytes))
	return err
}
