package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	datalogv1 "github.com/rzbill/datalog/api/datalog/v1"
)

// grpcAddrFromEnv returns the gRPC server address from DATALOG_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("DATALOG_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPCContext dials the datalog gRPC endpoint with insecure transport for local/dev.
func dialGRPCContext(ctx context.Context) (*grpc.ClientConn, error) {
	addr := grpcAddrFromEnv()
	return grpc.DialContext(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// withDatalogClient provides a Datalog client and ensures the connection is closed.
func withDatalogClient(ctx context.Context, fn func(datalogv1.DatalogClient) error) error {
	conn, err := dialGRPCContext(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(datalogv1.NewDatalogClient(conn))
}

// withToken attaches the bearer token, if any, to outgoing metadata.
func withToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// parseTimestamp accepts unix milliseconds or RFC3339. Empty yields nil,
// which lets the server stamp the record.
func parseTimestamp(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &ms, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		ms := t.UnixMilli()
		return &ms, nil
	}
	return nil, fmt.Errorf("invalid timestamp %q; expected ms or RFC3339", s)
}

// readPayload returns the inline payload or the contents of file ("-" reads stdin).
func readPayload(inline, file string, stdin io.Reader) ([]byte, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("use either --payload or --payload-file")
	case file == "-":
		return io.ReadAll(stdin)
	case file != "":
		return os.ReadFile(file)
	default:
		return []byte(inline), nil
	}
}

// decodedRecord returns a map with timestamp_ms and one of payload_json, payload_text, or payload_b64.
func decodedRecord(tsMs int64, payload []byte) map[string]any {
	out := map[string]any{
		"timestamp_ms": tsMs,
	}
	// Try JSON first if it looks like JSON
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}
