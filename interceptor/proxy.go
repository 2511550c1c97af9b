package interceptor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jonwraymond/toolscope/auth"
	"github.com/jonwraymond/toolscope/listing"
	"github.com/jonwraymond/toolscope/observe"
)

// DefaultMaxBodyBytes bounds request bodies read by the proxy middleware.
const DefaultMaxBodyBytes int64 = 4 << 20

// ProxyOptions configures Middleware.
type ProxyOptions struct {
	// EnforceCalls rejects tools/call requests for tools the caller cannot
	// see with a JSON-RPC invalid params error.
	EnforceCalls bool

	// MaxBodyBytes bounds the request body. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Authorizer decides tools/call requests when EnforceCalls is set.
	// Nil means a listing.Authorizer over the interceptor's table.
	Authorizer auth.Authorizer
}

// Middleware filters the tool listings in responses produced by next, which
// is expected to forward requests to an upstream MCP server.
//
// Every message in a 2xx response whose result carries tools is filtered,
// whatever request it answers, so listings that arrive on GET event streams
// or under a re-encoded id are covered too. Event streams are filtered event
// by event as they arrive. Bodies with a content encoding are refused with
// 502.
//
// The caller identity is taken from the request context (see
// auth.Middleware) or resolved from the request headers.
func (i *Interceptor) Middleware(opts ProxyOptions) func(http.Handler) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	var authorizer auth.Authorizer = auth.AllowAllAuthorizer{}
	if opts.EnforceCalls {
		authorizer = opts.Authorizer
		if authorizer == nil {
			authorizer = listing.NewAuthorizer(i.table)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			id := auth.IdentityFromContext(ctx)
			if id == nil {
				id = i.resolver.ResolveIdentity(ctx, auth.HeadersFromHTTP(r.Header))
				ctx = auth.WithIdentity(ctx, id)
			}

			inv := &observe.Invocation{Phase: observe.PhaseProxy}
			if r.Method == http.MethodPost && r.Body != nil {
				body, err := readBody(r, opts.MaxBodyBytes)
				if err != nil {
					status := http.StatusBadRequest
					if errors.Is(err, ErrBodyTooLarge) {
						status = http.StatusRequestEntityTooLarge
					}
					http.Error(w, err.Error(), status)
					return
				}

				calls, batch, err := parseCalls(body)
				if err != nil && (opts.EnforceCalls || errors.Is(err, ErrAmbiguousMember)) {
					i.logger.Info(ctx, "request rejected",
						observe.F("principal", id.Principal),
						observe.F("error", err.Error()),
					)
					writeRejected(w, err)
					return
				}

				if denied := i.deniedCalls(ctx, authorizer, id, calls); len(denied) > 0 {
					writeDenied(w, calls, denied, batch)
					return
				}
				inv.Method = invocationMethod(calls, batch)
			}

			// Responses must come back uncompressed to be filtered.
			r.Header.Del("Accept-Encoding")

			i.inst.Wrap(func(ctx context.Context, inv *observe.Invocation) {
				fw := newFilteringWriter(w, func(msg []byte) []byte {
					return i.filterMessage(ctx, id, msg, inv)
				})
				next.ServeHTTP(fw, r.WithContext(ctx))
				if err := fw.finish(); err != nil {
					inv.Err = err
				}
			})(ctx, inv)
		})
	}
}

func invocationMethod(calls []rpcCall, batch bool) string {
	switch {
	case batch:
		return "batch"
	case len(calls) == 1:
		return calls[0].Method
	default:
		return ""
	}
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	return body, nil
}

// deniedCalls returns the indexes of tools/call requests the caller may not
// make.
func (i *Interceptor) deniedCalls(ctx context.Context, a auth.Authorizer, id *auth.Identity, calls []rpcCall) map[int]error {
	var denied map[int]error
	for n, c := range calls {
		if c.Method != string(mcp.MethodToolsCall) {
			continue
		}
		err := a.Authorize(ctx, &auth.AuthzRequest{Subject: id, Tool: c.Tool, Action: "call"})
		if err == nil {
			continue
		}
		if denied == nil {
			denied = make(map[int]error)
		}
		denied[n] = err
		i.logger.Info(ctx, "tool call denied",
			observe.F("principal", id.Principal),
			observe.F("groups", id.Groups),
			observe.F("tool", c.Tool),
		)
	}
	return denied
}

// writeRejected answers a request that cannot be checked without forwarding
// it.
func writeRejected(w http.ResponseWriter, err error) {
	rpcErr := newRPCError(nil, mcp.INVALID_REQUEST, "Invalid request")
	if errors.Is(err, ErrInvalidJSON) {
		rpcErr = newRPCError(nil, mcp.PARSE_ERROR, "Parse error")
	}
	writeJSON(w, http.StatusBadRequest, rpcErr)
}

// writeDenied answers a request containing denied tool calls without
// forwarding it. In a batch, every request that expects a response gets an
// error: denied calls name the reason, the rest report the batch rejection.
func writeDenied(w http.ResponseWriter, calls []rpcCall, denied map[int]error, batch bool) {
	var payload any
	if batch {
		errs := make([]rpcError, 0, len(calls))
		for n, c := range calls {
			if c.ID == nil {
				continue
			}
			msg := "Batch rejected: contains an unauthorized tool call"
			if _, ok := denied[n]; ok {
				msg = "Unauthorized"
			}
			errs = append(errs, newInvalidParams(c.ID, msg))
		}
		payload = errs
	} else {
		payload = newInvalidParams(calls[0].ID, "Unauthorized")
	}

	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := encode(payload)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// filterMessage filters one JSON-RPC message, or a batch of them, when its
// result carries tools. Anything else is returned as is.
func (i *Interceptor) filterMessage(ctx context.Context, id *auth.Identity, msg []byte, inv *observe.Invocation) []byte {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return msg
		}
		changed := false
		for n, m := range batch {
			if out := i.filterMessage(ctx, id, m, inv); !bytes.Equal(out, m) {
				batch[n] = out
				changed = true
			}
		}
		if !changed {
			return msg
		}
		data, err := encode(batch)
		if err != nil {
			return msg
		}
		return data
	}

	response, ok := decodeObject(trimmed)
	if !ok || !hasTools(response) {
		return msg
	}

	filtered, d := i.FilterListing(ctx, id, response)
	record(inv, d)
	data, err := encode(filtered)
	if err != nil {
		inv.Err = err
		// Fail closed: never return the unfiltered listing.
		data, err = encode(map[string]any{
			"jsonrpc": mcp.JSONRPC_VERSION,
			"id":      response["id"],
			"result":  map[string]any{"tools": []any{}},
		})
		if err != nil {
			return []byte(`{"jsonrpc":"2.0","id":null,"result":{"tools":[]}}`)
		}
	}
	return data
}

// hasTools reports whether response is a result carrying a tools member.
func hasTools(response map[string]any) bool {
	result, ok := response["result"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = result["tools"]
	return ok
}

type writerMode int

const (
	modeUndecided writerMode = iota
	modePassThrough
	modeBuffer
	modeStream
	modeReject
)

// filteringWriter passes an upstream response through filter before it
// reaches the client. The mode is chosen from the status and headers:
// non-2xx responses pass through, event streams are rewritten event by
// event, encoded bodies are refused and anything else is buffered and
// filtered whole.
type filteringWriter struct {
	w         http.ResponseWriter
	filter    func([]byte) []byte
	mode      writerMode
	status    int
	buffer    bytes.Buffer
	stream    *sseRewriter
	discarded int
}

func newFilteringWriter(w http.ResponseWriter, filter func([]byte) []byte) *filteringWriter {
	return &filteringWriter{w: w, filter: filter}
}

func (fw *filteringWriter) Header() http.Header {
	return fw.w.Header()
}

func (fw *filteringWriter) WriteHeader(statusCode int) {
	if fw.mode != modeUndecided {
		return
	}
	if statusCode < http.StatusOK {
		fw.w.WriteHeader(statusCode)
		return
	}

	fw.status = statusCode
	h := fw.w.Header()
	switch {
	case statusCode >= http.StatusMultipleChoices:
		fw.mode = modePassThrough
	case isEncoded(h):
		fw.mode = modeReject
		return
	case isEventStream(h):
		fw.mode = modeStream
		fw.stream = newSSERewriter(fw.w, fw.filter)
		h.Del("Content-Length")
	default:
		fw.mode = modeBuffer
		return
	}
	fw.w.WriteHeader(statusCode)
}

func (fw *filteringWriter) Write(data []byte) (int, error) {
	if fw.mode == modeUndecided {
		fw.WriteHeader(http.StatusOK)
	}
	switch fw.mode {
	case modeStream:
		return fw.stream.Write(data)
	case modeBuffer:
		return fw.buffer.Write(data)
	case modeReject:
		fw.discarded += len(data)
		return len(data), nil
	default:
		return fw.w.Write(data)
	}
}

// Flush forwards complete events of a stream to the client. Buffered
// responses are written by finish.
func (fw *filteringWriter) Flush() {
	if fw.mode != modeStream && fw.mode != modePassThrough {
		return
	}
	if f, ok := fw.w.(http.Flusher); ok {
		f.Flush()
	}
}

// finish completes the response once next has returned.
func (fw *filteringWriter) finish() error {
	if fw.mode == modeUndecided {
		fw.WriteHeader(http.StatusOK)
	}
	h := fw.w.Header()

	switch fw.mode {
	case modeStream:
		return fw.stream.Close()

	case modeReject:
		if fw.discarded == 0 {
			fw.w.WriteHeader(fw.status)
			return nil
		}
		body := "upstream response uses an unsupported content encoding\n"
		h.Del("Content-Encoding")
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Content-Length", strconv.Itoa(len(body)))
		fw.w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(fw.w, body)
		return ErrUnsupportedEncoding

	case modeBuffer:
		body := fw.buffer.Bytes()
		if len(body) > 0 {
			body = fw.filter(body)
			h.Set("Content-Length", strconv.Itoa(len(body)))
		}
		fw.w.WriteHeader(fw.status)
		_, err := fw.w.Write(body)
		return err
	}
	return nil
}

func isEncoded(h http.Header) bool {
	enc := h.Get("Content-Encoding")
	return enc != "" && enc != "identity"
}

func isEventStream(h http.Header) bool {
	mediaType, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
	return mediaType == "text/event-stream"
}
