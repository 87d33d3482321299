package engine

import (
	"context"
)

// CLIFrontend is the contract a human-facing command-line surface
// would satisfy over an Engine: verb dispatch, exit-code translation
// (0 success, 2 validation error, 3 connectivity error, 1 other), and
// human/JSON/table renderers. It names the seam between this core and
// that surface without implementing it — verb parsing and flag
// handling live in a separate command package, not in this engine.
type CLIFrontend interface {
	// Run dispatches a single CLI invocation (already split into verb
	// and args by the caller's flag parser) against an Engine and
	// returns the process exit code.
	Run(ctx context.Context, verb string, args []string) (exitCode int, err error)
}

// RPCFrontend is the contract a JSON-RPC/MCP wire server would satisfy
// over an Engine: request parsing, method dispatch, and rate limiting
// via internal/ratelimit. Named here so the separation between wire
// protocol and domain engine stays explicit even before a transport
// is wired up.
type RPCFrontend interface {
	// Dispatch handles one decoded RPC method call, marshaling its
	// result back to the wire format the transport expects.
	Dispatch(ctx context.Context, method string, params []byte) (result []byte, err error)
}

// Embedder-backed and ReflectionGenerator-backed HTTP/network clients
// are likewise named interfaces only — see embedder.go and
// reflection.go — except where this engine ships a deterministic local
// implementation to keep retrieval and completion fully exercised
// without one.
