package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	datalogv1 "github.com/rzbill/datalog/api/datalog/v1"
)

func addTokenFlag(cmd *cobra.Command) {
	cmd.Flags().String("token", os.Getenv("DATALOG_TOKEN"), "Bearer token identifying the account (env DATALOG_TOKEN)")
}

// NewRecordCommand constructs the `record` command.
func NewRecordCommand() *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Append a record to the caller's log",
		Long: `Append a record to the log of the authenticated account.

The oldest record is evicted once the log holds window-1 records.
Payloads larger than the server's maximum record size are rejected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, _ := cmd.Flags().GetString("token")
			inline, _ := cmd.Flags().GetString("payload")
			file, _ := cmd.Flags().GetString("payload-file")
			ts, _ := cmd.Flags().GetString("ts")

			payload, err := readPayload(inline, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			tsMs, err := parseTimestamp(ts)
			if err != nil {
				return err
			}
			ctx := withToken(cmd.Context(), token)
			return withDatalogClient(ctx, func(cli datalogv1.DatalogClient) error {
				res, err := cli.Record(ctx, &datalogv1.RecordRequest{Payload: payload, TimestampMs: tsMs})
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"timestamp_ms": res.TimestampMs})
			})
		},
	}
	recordCmd.Flags().String("payload", "", "Record payload")
	recordCmd.Flags().String("payload-file", "", "Read the payload from a file (- for stdin)")
	recordCmd.Flags().String("ts", "", "Record timestamp: RFC3339 or ms (default: server clock)")
	addTokenFlag(recordCmd)
	return recordCmd
}

// NewEraseCommand constructs the `erase` command.
func NewEraseCommand() *cobra.Command {
	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase the caller's log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, _ := cmd.Flags().GetString("token")
			ctx := withToken(cmd.Context(), token)
			return withDatalogClient(ctx, func(cli datalogv1.DatalogClient) error {
				if _, err := cli.Erase(ctx, &datalogv1.EraseRequest{}); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
				return nil
			})
		},
	}
	addTokenFlag(eraseCmd)
	return eraseCmd
}

// NewQueryCommand constructs the `query` command. Records are printed one
// JSON object per line, oldest first.
func NewQueryCommand() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "List the records of a log",
		Example: `  datalog query --account alice
  datalog query --account alice --filter 'size > 16' --limit 5
  datalog query --token "$DATALOG_TOKEN" --filter 'json.kind == "login"'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, _ := cmd.Flags().GetString("token")
			account, _ := cmd.Flags().GetString("account")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt32("limit")
			if limit < 0 {
				return fmt.Errorf("invalid --limit; must be >= 0")
			}

			ctx := withToken(cmd.Context(), token)
			return withDatalogClient(ctx, func(cli datalogv1.DatalogClient) error {
				res, err := cli.Query(ctx, &datalogv1.QueryRequest{Account: account, Filter: filter, Limit: limit})
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range res.Records {
					if err := enc.Encode(decodedRecord(r.TimestampMs, r.Payload)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	queryCmd.Flags().String("account", "", "Account to read (default: the authenticated account)")
	queryCmd.Flags().String("filter", "", "CEL expression over ts_ms, size, text, json and now_ms")
	queryCmd.Flags().Int32("limit", 0, "Keep only the newest N matching records (0 = all)")
	addTokenFlag(queryCmd)
	return queryCmd
}
