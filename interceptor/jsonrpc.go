package interceptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// rpcError is a JSON-RPC error response. The id is echoed verbatim.
type rpcError struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   rpcErrorBody    `json:"error"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newRPCError(id json.RawMessage, code int, message string) rpcError {
	if len(id) == 0 {
		id = json.RawMessage(`null`)
	}
	return rpcError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error:   rpcErrorBody{Code: code, Message: message},
	}
}

func newInvalidParams(id json.RawMessage, message string) rpcError {
	return newRPCError(id, mcp.INVALID_PARAMS, message)
}

// rpcCall is the part of a JSON-RPC request the interceptor reads.
type rpcCall struct {
	ID     json.RawMessage // nil for notifications
	Method string
	Tool   string // params.name for tools/call
}

// Member names the interceptor reads. A request may not repeat them or
// spell them with different case.
var (
	requestMembers = []string{"jsonrpc", "id", "method", "params"}
	paramsMembers  = []string{"name"}
)

var errNotObject = errors.New("not a JSON object")

// parseCalls decodes a request body. Batches yield one rpcCall per element.
// Empty bodies and JSON values other than objects and arrays yield nothing.
// A later copy of a repeated member would win in most decoders, so requests
// that repeat one fail with ErrAmbiguousMember instead.
func parseCalls(body []byte) (calls []rpcCall, batch bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, nil
	}
	if !json.Valid(trimmed) {
		return nil, false, ErrInvalidJSON
	}

	if trimmed[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, false, ErrInvalidJSON
		}
		calls = make([]rpcCall, 0, len(elems))
		for _, elem := range elems {
			c, err := callFrom(elem)
			if err != nil {
				return nil, true, err
			}
			calls = append(calls, c)
		}
		return calls, true, nil
	}

	c, err := callFrom(trimmed)
	if err != nil {
		return nil, false, err
	}
	if c.ID == nil && c.Method == "" {
		return nil, false, nil
	}
	return []rpcCall{c}, false, nil
}

func callFrom(raw []byte) (rpcCall, error) {
	members, err := decodeMembers(raw, requestMembers)
	if errors.Is(err, errNotObject) {
		return rpcCall{}, nil
	}
	if err != nil {
		return rpcCall{}, err
	}

	c := rpcCall{ID: members["id"]}
	_ = json.Unmarshal(members["method"], &c.Method)
	if c.Method != string(mcp.MethodToolsCall) {
		return c, nil
	}

	params, err := decodeMembers(members["params"], paramsMembers)
	switch {
	case errors.Is(err, errNotObject):
		return c, nil
	case err != nil:
		return rpcCall{}, err
	}
	// A name that is not a string leaves Tool empty, which no table permits
	// except through "*".
	_ = json.Unmarshal(params["name"], &c.Tool)
	return c, nil
}

// decodeMembers splits a JSON object into its members without decoding
// their values. It fails with ErrAmbiguousMember when a member repeats, or
// when a member matches one of guarded only under case folding.
func decodeMembers(raw []byte, guarded []string) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, errNotObject
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	members := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrInvalidJSON
		}
		key, ok := tok.(string)
		if !ok {
			return nil, ErrInvalidJSON
		}
		if _, dup := members[key]; dup {
			return nil, ErrAmbiguousMember
		}
		for _, name := range guarded {
			if key != name && strings.EqualFold(key, name) {
				return nil, ErrAmbiguousMember
			}
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, ErrInvalidJSON
		}
		members[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, ErrInvalidJSON
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrInvalidJSON
	}
	return members, nil
}

// requestMethod returns the method of an envelope request body. A body
// whose method is ambiguous reports tools/list, so its response is
// filtered rather than passed through.
func requestMethod(body []byte) string {
	members, err := decodeMembers(body, requestMembers)
	if errors.Is(err, ErrAmbiguousMember) {
		return string(mcp.MethodToolsList)
	}
	if err != nil {
		return ""
	}
	var method string
	if err := json.Unmarshal(members["method"], &method); err != nil {
		return ""
	}
	return method
}

// decodeObject decodes a JSON object keeping numbers as json.Number, so ids
// and numeric metadata survive re-encoding unchanged.
func decodeObject(data []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// encode marshals v without HTML escaping and without a trailing newline.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
