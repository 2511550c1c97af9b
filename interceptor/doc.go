// Package interceptor applies tool listing filters to MCP traffic.
//
// Two surfaces share one Interceptor:
//
//   - Handle processes a gateway interceptor envelope. Requests pass through,
//     tools/list responses are filtered, other responses pass through.
//   - Middleware wraps an HTTP handler that talks to an upstream MCP server
//     and filters every tool listing on the way back, in JSON bodies,
//     JSON-RPC batches and event streams of any request method. It refuses
//     requests that repeat a JSON-RPC member and can also refuse tools/call
//     requests for tools the caller cannot see.
package interceptor
