package interceptor

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jonwraymond/toolscope/auth"
	"github.com/jonwraymond/toolscope/listing"
	"github.com/jonwraymond/toolscope/observe"
	"github.com/jonwraymond/toolscope/policy"
)

// Interceptor resolves callers and filters their tool listings.
//
// Contract:
// - Concurrency: safe for concurrent use. The permission table is immutable.
// - Errors: Handle never fails. Malformed input degrades to pass-through or
// to the guest view.
type Interceptor struct {
	table    *policy.Table
	resolver *auth.Resolver
	inst     *observe.Instrumentation
	logger   observe.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithResolver sets the identity resolver.
func WithResolver(r *auth.Resolver) Option {
	return func(i *Interceptor) {
		if r != nil {
			i.resolver = r
		}
	}
}

// WithInstrumentation sets tracing, metrics and logging.
func WithInstrumentation(inst *observe.Instrumentation) Option {
	return func(i *Interceptor) {
		if inst != nil {
			i.inst = inst
		}
	}
}

// New creates an Interceptor for table.
func New(table *policy.Table, opts ...Option) *Interceptor {
	i := &Interceptor{
		table: table,
		inst:  observe.NopInstrumentation(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.inst.Logger()
	if i.resolver == nil {
		i.resolver = auth.NewResolver(auth.WithLogger(i.logger))
	}
	return i
}

// Table returns the permission table.
func (i *Interceptor) Table() *policy.Table {
	return i.table
}

// Decision records how one listing was filtered.
type Decision struct {
	Identity    *auth.Identity
	Permissions policy.Permissions
	ToolsIn     int
	ToolsOut    int
}

// FilterListing filters a tools/list response for id and logs the decision.
func (i *Interceptor) FilterListing(ctx context.Context, id *auth.Identity, response map[string]any) (map[string]any, Decision) {
	if id == nil {
		id = auth.GuestIdentity()
	}
	perms := i.table.Resolve(id.Groups)
	filtered := listing.Filter(response, perms)

	d := Decision{
		Identity:    id,
		Permissions: perms,
		ToolsIn:     listing.Count(response),
		ToolsOut:    listing.Count(filtered),
	}
	i.logger.Info(ctx, "tools filtered",
		observe.F("principal", id.Principal),
		observe.F("groups", id.Groups),
		observe.F("anonymous", id.IsAnonymous()),
		observe.F("token_expired", id.IsExpired()),
		observe.F("permissions", perms.Tokens()),
		observe.F("tools_in", d.ToolsIn),
		observe.F("tools_out", d.ToolsOut),
	)
	return filtered, d
}

// Handle processes one gateway envelope. A nil input is treated as empty.
func (i *Interceptor) Handle(ctx context.Context, in *Input) *Output {
	if in == nil {
		in = &Input{}
	}

	inv := &observe.Invocation{
		Phase:  observe.PhaseRequest,
		Method: requestMethod(in.MCP.GatewayRequest.Body),
	}
	if in.MCP.GatewayResponse != nil {
		inv.Phase = observe.PhaseResponse
	}

	var out *Output
	i.inst.Wrap(func(ctx context.Context, inv *observe.Invocation) {
		out = i.handle(ctx, in, inv)
	})(ctx, inv)
	return out
}

func (i *Interceptor) handle(ctx context.Context, in *Input, inv *observe.Invocation) *Output {
	req := in.MCP.GatewayRequest
	resp := in.MCP.GatewayResponse

	if resp == nil {
		i.logger.Debug(ctx, "request phase, passing through")
		return requestOutput(req.Body)
	}

	if inv.Method != string(mcp.MethodToolsList) {
		i.logger.Debug(ctx, "response passed through", observe.F("method", inv.Method))
		return responseOutput(resp.StatusCode, resp.Body)
	}

	body, ok := decodeObject(resp.Body)
	if !ok {
		i.logger.Warn(ctx, "tools/list response body is not a JSON object, passing through")
		return responseOutput(resp.StatusCode, resp.Body)
	}

	id := i.resolver.ResolveIdentity(ctx, req.Headers)
	ctx = auth.WithIdentity(ctx, id)
	filtered, d := i.FilterListing(ctx, id, body)
	record(inv, d)

	data, err := encode(filtered)
	if err != nil {
		inv.Err = err
		// Fail closed: never return the unfiltered listing.
		return responseOutput(resp.StatusCode, json.RawMessage(`{"result":{"tools":[]}}`))
	}
	return responseOutput(resp.StatusCode, data)
}

// record copies a decision into the invocation. Counts accumulate so one
// invocation can cover several listings, as in a batch.
func record(inv *observe.Invocation, d Decision) {
	inv.Filtered = true
	inv.Groups = d.Identity.Groups
	inv.Guest = d.Identity.IsGuest()
	inv.DecodeFailed = d.Identity.DecodeErr != nil
	inv.ToolsIn += d.ToolsIn
	inv.ToolsOut += d.ToolsOut
}
