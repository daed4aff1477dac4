package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rfsync/internal/demo"
	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/store"
)

// CheckResult describes the address book's client-visible surface.
type CheckResult struct {
	Factory     string             `json:"factory"`
	Contexts    []string           `json:"contexts"`
	Proxies     []ProxySummary     `json:"proxies"`
	Operations  []OperationSummary `json:"operations"`
	Constrained []string           `json:"constrained"`
}

// ProxySummary is one proxy type.
type ProxySummary struct {
	Token      string   `json:"token"`
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Domain     string   `json:"domain"`
	Properties []string `json:"properties"`
}

// OperationSummary is one operation.
type OperationSummary struct {
	Token    string   `json:"token"`
	Instance bool     `json:"instance,omitempty"`
	Receiver string   `json:"receiver,omitempty"`
	Params   []string `json:"params,omitempty"`
	Return   string   `json:"return"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Build the address book and report its surface",
		Long: `Build the address book's type mapping and constraint schemas and report
the request factory, proxy types and operations a client can use.

Building fails if any mapping is inconsistent (an operation naming an
unknown method, a proxy backed by an unknown domain type) or a constraint
schema does not compile.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, database, cmd)
		},
	}

	cmd.Flags().StringVar(&database, "db", ":memory:", "path to SQLite database")

	return cmd
}

func runCheck(opts *RootOptions, database string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts)

	st, err := store.Open(database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := st.Ping(cmd.Context()); err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "database unavailable", err)
	}

	table, err := demo.NewTable(store.NewLocator(st))
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeTable, "invalid type mapping", err)
	}
	v, err := demo.NewValidator(table)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeTable, "invalid constraints", err)
	}

	result := summarize(table)
	result.Constrained = v.Types()

	if f.JSON() {
		return f.Success(result)
	}
	writeCheckText(f.Writer, result)
	return nil
}

// summarize lists the surface reachable from the address book factory.
func summarize(table *domain.Table) CheckResult {
	result := CheckResult{Factory: demo.Factory}
	if factory, ok := table.Factory(demo.Factory); ok {
		result.Contexts = factory.Contexts
	}

	for _, p := range table.Proxies() {
		props := make([]string, len(p.Properties))
		for i, prop := range p.Properties {
			props[i] = prop.Name + " " + prop.Type.String()
		}
		result.Proxies = append(result.Proxies, ProxySummary{
			Token:      p.Token,
			Name:       p.Name,
			Kind:       p.Kind.String(),
			Domain:     p.Domain,
			Properties: props,
		})
	}

	for _, op := range table.Operations() {
		params := make([]string, len(op.Params))
		for i, param := range op.Params {
			params[i] = param.String()
		}
		result.Operations = append(result.Operations, OperationSummary{
			Token:    op.Token,
			Instance: op.Instance,
			Receiver: op.Receiver,
			Params:   params,
			Return:   op.Return.String(),
		})
	}

	return result
}

func writeCheckText(w io.Writer, r CheckResult) {
	fmt.Fprintf(w, "Factory: %s (%s)\n", r.Factory, strings.Join(r.Contexts, ", "))

	fmt.Fprintf(w, "\nProxies: %d\n", len(r.Proxies))
	for _, p := range r.Proxies {
		fmt.Fprintf(w, "  %s [%s, token %s] -> %s\n", p.Name, p.Kind, p.Token, p.Domain)
		for _, prop := range p.Properties {
			fmt.Fprintf(w, "    %s\n", prop)
		}
	}

	fmt.Fprintf(w, "\nOperations: %d\n", len(r.Operations))
	for _, op := range r.Operations {
		recv := ""
		if op.Instance {
			recv = op.Receiver + "."
		}
		fmt.Fprintf(w, "  %s%s(%s) %s\n", recv, op.Token, strings.Join(op.Params, ", "), op.Return)
	}

	fmt.Fprintf(w, "\nConstrained types: %s\n", strings.Join(r.Constrained, ", "))
	fmt.Fprintln(w, "\u2713 Address book is consistent")
}
