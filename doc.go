// Package mcup is a client-side session layer for JSON-RPC 2.0 protocol
// servers, with a user-approval gate interposed on mutating tool calls.
//
// A Session owns one Transport (stdio pipe, HTTP event stream, or websocket),
// runs a single inbound read loop, correlates concurrent requests with their
// responses, and dispatches server notifications and server-initiated
// requests to registered handlers. Before a tool call classified as mutating
// reaches the wire, the session suspends the caller until an Approver
// produces a verdict; a denial never sends anything.
//
// Basic usage against a spawned stdio server:
//
//	proc, err := mcup.StartServer(ctx, &mcup.ServerOptions{
//		Command: "npx",
//		Args:    []string{"-y", "@modelcontextprotocol/server-filesystem"},
//	})
//	if err != nil { ... }
//
//	session := mcup.NewSession(proc,
//		mcup.WithApprover(&mcup.ConsoleApprover{In: os.Stdin, Out: os.Stderr}),
//	)
//	defer session.Close()
//
//	caps, err := session.Initialize(ctx, mcup.Implementation{Name: "mcup", Version: "0.1.0"})
//	if err != nil { ... }
//
//	// Prompts for approval ("write" is a mutating keyword).
//	result, err := session.CallTool(ctx, "write_data", map[string]interface{}{"data": "example"})
//
//	// No prompt.
//	tools, err := session.ListTools(ctx)
//
// Remote servers connect the same way through DialSSE or DialWebSocket, or
// declaratively through a Config file (see LoadConfig).
package mcup
