package interceptor

import (
	"encoding/json"

	"github.com/jonwraymond/toolscope/auth"
)

// OutputVersion is the interceptorOutputVersion written on every Output.
const OutputVersion = "1.0"

// DefaultStatusCode is reported when the gateway response has no status code.
const DefaultStatusCode = 200

var emptyObject = json.RawMessage(`{}`)

// Input is the envelope a gateway sends to the interceptor.
type Input struct {
	MCP InputMCP `json:"mcp"`
}

// InputMCP holds the intercepted request and, in the response phase, the
// response.
type InputMCP struct {
	GatewayRequest GatewayRequest `json:"gatewayRequest"`

	// GatewayResponse is nil in the request phase.
	GatewayResponse *GatewayResponse `json:"gatewayResponse,omitempty"`
}

// GatewayRequest is the client request as seen by the gateway.
type GatewayRequest struct {
	Headers auth.Headers    `json:"headers,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// GatewayResponse is the upstream response as seen by the gateway.
type GatewayResponse struct {
	StatusCode json.RawMessage `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Output is the envelope returned to the gateway. Exactly one of the
// transformed fields is set.
type Output struct {
	InterceptorOutputVersion string    `json:"interceptorOutputVersion"`
	MCP                      OutputMCP `json:"mcp"`
}

// OutputMCP carries the transformed request or response.
type OutputMCP struct {
	TransformedGatewayRequest  *TransformedRequest  `json:"transformedGatewayRequest,omitempty"`
	TransformedGatewayResponse *TransformedResponse `json:"transformedGatewayResponse,omitempty"`
}

// TransformedRequest is the request body to forward.
type TransformedRequest struct {
	Body json.RawMessage `json:"body"`
}

// TransformedResponse is the response to return to the client.
type TransformedResponse struct {
	StatusCode json.RawMessage `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

func requestOutput(body json.RawMessage) *Output {
	return &Output{
		InterceptorOutputVersion: OutputVersion,
		MCP: OutputMCP{
			TransformedGatewayRequest: &TransformedRequest{Body: orEmpty(body)},
		},
	}
}

func responseOutput(status, body json.RawMessage) *Output {
	return &Output{
		InterceptorOutputVersion: OutputVersion,
		MCP: OutputMCP{
			TransformedGatewayResponse: &TransformedResponse{
				StatusCode: statusOrDefault(status),
				Body:       orEmpty(body),
			},
		},
	}
}

// orEmpty substitutes {} for a missing body.
func orEmpty(body json.RawMessage) json.RawMessage {
	if len(body) == 0 {
		return emptyObject
	}
	return body
}

// statusOrDefault carries the status code through unchanged, defaulting a
// missing or null code.
func statusOrDefault(status json.RawMessage) json.RawMessage {
	if len(status) == 0 || string(status) == "null" {
		return json.RawMessage(`200`)
	}
	return status
}
