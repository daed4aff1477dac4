package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rfsync/internal/demo"
	"github.com/roach88/rfsync/internal/ir"
	"github.com/roach88/rfsync/internal/processor"
	"github.com/roach88/rfsync/internal/store"
)

// ProcessOptions holds flags for the process command.
type ProcessOptions struct {
	*RootOptions
	Database string
	Seed     bool

	// RequestIDs overrides the request id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RequestIDs processor.RequestIDGenerator
}

// NewProcessCommand creates the process command.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process [request.json|-]",
		Short: "Process one request payload",
		Long: `Process one JSON request payload against the address book.

The payload is read from the named file, or from stdin when the argument
is "-" or missing. The database is created if it doesn't exist.

Exit codes:
  0 - Request processed
  1 - Request answered with a general failure or violations
  2 - Command error (unreadable payload, database error, server error)

Example:
  rfsync process --db ./book.db --seed request.json
  echo '{"request_factory":"AddressBookFactory","invocations":[{"operation":"PersonRequest::count"}]}' | rfsync process --db ./book.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			return runProcess(opts, source, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "store the sample people if the book is empty")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runProcess(opts *ProcessOptions, source string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	payload, err := readPayload(source, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read request", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.Seed {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := demo.Seed(ctx, st); err != nil {
			return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to seed database", err)
		}
	}

	var procOpts []processor.Option
	if opts.RequestIDs != nil {
		procOpts = append(procOpts, processor.WithRequestIDs(opts.RequestIDs))
	}
	proc, err := demo.New(st, procOpts...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeTable, "failed to build address book", err)
	}

	f.VerboseLog("Processing %d byte payload (hash %s)", len(payload), ir.PayloadHash(payload))
	out, err := proc.ProcessPayload(payload)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeServer, "server error", err)
	}

	var resp ir.ResponseMessage
	if err := json.Unmarshal(out, &resp); err != nil {
		return f.Fail(ExitCommandError, ErrCodeServer, "undecodable response", err)
	}

	if f.JSON() {
		if err := f.Success(json.RawMessage(out)); err != nil {
			return err
		}
	} else {
		writeResponseText(f.Writer, resp)
	}

	switch {
	case resp.GeneralFailure != nil:
		return NewExitError(ExitFailure, "request failed: "+resp.GeneralFailure.Message)
	case len(resp.Violations) > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("request rejected with %d violation(s)", len(resp.Violations)))
	}
	return nil
}

// readPayload reads a file, or r when source is "-".
func readPayload(source string, r io.Reader) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(r)
	}
	return os.ReadFile(source)
}

// writeResponseText prints a human-readable summary of a response.
func writeResponseText(w io.Writer, resp ir.ResponseMessage) {
	if gf := resp.GeneralFailure; gf != nil {
		fmt.Fprintf(w, "General failure [%s]: %s\n", gf.ExceptionType, gf.Message)
		return
	}

	if len(resp.Violations) > 0 {
		fmt.Fprintf(w, "Violations: %d\n", len(resp.Violations))
		for _, v := range resp.Violations {
			fmt.Fprintf(w, "  %s: %s", v.Path, v.Message)
			if v.RootID != nil {
				fmt.Fprintf(w, " (%s)", describeID(*v.RootID))
			}
			fmt.Fprintln(w)
		}
		return
	}

	fmt.Fprintf(w, "Invocations: %d\n", len(resp.InvocationResults))
	for i, result := range resp.InvocationResults {
		status := "ok"
		if i < len(resp.StatusCodes) && !resp.StatusCodes[i] {
			status = "failed"
		}
		data, err := ir.MarshalCanonical(result)
		if err != nil {
			data = []byte(fmt.Sprintf("<%v>", err))
		}
		fmt.Fprintf(w, "  [%d] %s %s\n", i, status, data)
	}

	fmt.Fprintf(w, "Operations: %d\n", len(resp.Operations))
	for _, op := range resp.Operations {
		write := string(op.Operation)
		if write == "" {
			write = "NONE"
		}
		fmt.Fprintf(w, "  %-7s %s", write, describeID(op.IDMessage))
		if op.Version != "" {
			fmt.Fprintf(w, " version=%s", op.Version)
		}
		fmt.Fprintln(w)
	}
}

// describeID renders an id for display.
func describeID(id ir.IDMessage) string {
	switch id.Strength {
	case ir.StrengthEphemeral:
		return fmt.Sprintf("%s client:%d", id.TypeToken, id.ClientID)
	case ir.StrengthSynthetic:
		return fmt.Sprintf("%s synthetic:%d", id.TypeToken, id.SyntheticID)
	default:
		if id.ClientID != 0 {
			return fmt.Sprintf("%s %s (client:%d)", id.TypeToken, id.ServerID, id.ClientID)
		}
		return fmt.Sprintf("%s %s", id.TypeToken, id.ServerID)
	}
}
