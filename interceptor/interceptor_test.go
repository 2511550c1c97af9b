package interceptor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jonwraymond/toolscope/observe"
	"github.com/jonwraymond/toolscope/policy"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func testTable() *policy.Table {
	return policy.NewTable(map[string][]string{
		"admin":  {"*"},
		"reader": {"read", "list"},
		"guest":  {"list"},
	})
}

const listingBody = `{"jsonrpc":"2.0","id":7,"result":{"tools":[` +
	`{"name":"srv___read_document","inputSchema":{"type":"object"}},` +
	`{"name":"srv___delete_document"},` +
	`{"name":"srv___list_users"}],"nextCursor":"c1"}}`

func mustInput(t *testing.T, data string) *Input {
	t.Helper()
	in, err := DecodeInput([]byte(data))
	if err != nil {
		t.Fatalf("DecodeInput() error = %v", err)
	}
	return in
}

func toolNames(t *testing.T, body json.RawMessage) []string {
	t.Helper()
	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode body %s: %v", body, err)
	}
	out := make([]string, 0, len(resp.Result.Tools))
	for _, tl := range resp.Result.Tools {
		out = append(out, tl.Name)
	}
	return out
}

func envelope(authHeader, method, responseBody string) string {
	headers := `{}`
	if authHeader != "" {
		headers = `{"Authorization":"` + authHeader + `"}`
	}
	return `{"mcp":{"gatewayRequest":{"headers":` + headers + `,"body":{"jsonrpc":"2.0","id":7,"method":"` + method + `"}},` +
		`"gatewayResponse":{"statusCode":200,"body":` + responseBody + `}}}`
}

func TestHandle_RequestPhasePassesThrough(t *testing.T) {
	i := New(testTable())
	in := mustInput(t, `{"mcp":{"gatewayRequest":{"headers":{},"body":{"jsonrpc":"2.0","method":"tools/call","id":1}}}}`)

	out := i.Handle(context.Background(), in)

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"interceptorOutputVersion":"1.0","mcp":{"transformedGatewayRequest":{"body":{"jsonrpc":"2.0","method":"tools/call","id":1}}}}`
	if string(data) != want {
		t.Errorf("output =\n%s\nwant\n%s", data, want)
	}
}

func TestHandle_RequestPhaseNullResponseAndMissingBody(t *testing.T) {
	i := New(testTable())
	out := i.Handle(context.Background(), mustInput(t, `{"mcp":{"gatewayResponse":null}}`))

	if out.MCP.TransformedGatewayRequest == nil || out.MCP.TransformedGatewayResponse != nil {
		t.Fatalf("expected request pass-through, got %+v", out.MCP)
	}
	if string(out.MCP.TransformedGatewayRequest.Body) != `{}` {
		t.Errorf("body = %s, want {}", out.MCP.TransformedGatewayRequest.Body)
	}
}

func TestHandle_NonListingResponsePassesThrough(t *testing.T) {
	i := New(testTable())
	body := `{"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"secret___admin_reset"}]}}`
	in := mustInput(t, `{"mcp":{"gatewayRequest":{"body":{"method":"tools/call"}},"gatewayResponse":{"statusCode":201,"body":`+body+`}}}`)

	out := i.Handle(context.Background(), in)

	resp := out.MCP.TransformedGatewayResponse
	if resp == nil {
		t.Fatal("expected transformed response")
	}
	if string(resp.StatusCode) != "201" {
		t.Errorf("statusCode = %s, want 201", resp.StatusCode)
	}
	if string(resp.Body) != body {
		t.Errorf("body changed:\n%s", resp.Body)
	}
}

func TestHandle_FiltersListing(t *testing.T) {
	tests := []struct {
		name   string
		header func(t *testing.T) string
		want   []string
	}{
		{
			name: "admin sees all",
			header: func(t *testing.T) string {
				return "Bearer " + mintToken(t, jwt.MapClaims{"cognito:groups": []string{"admin"}})
			},
			want: []string{"srv___read_document", "srv___delete_document", "srv___list_users"},
		},
		{
			name: "reader by category",
			header: func(t *testing.T) string {
				return "Bearer " + mintToken(t, jwt.MapClaims{"custom:groups": "reader"})
			},
			want: []string{"srv___read_document", "srv___list_users"},
		},
		{
			name:   "no credential is guest",
			header: func(*testing.T) string { return "" },
			want:   []string{"srv___list_users"},
		},
		{
			name:   "malformed credential is guest",
			header: func(*testing.T) string { return "Bearer abc.def" },
			want:   []string{"srv___list_users"},
		},
	}

	i := New(testTable())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := i.Handle(context.Background(), mustInput(t, envelope(tt.header(t), "tools/list", listingBody)))
			resp := out.MCP.TransformedGatewayResponse
			if resp == nil {
				t.Fatal("expected transformed response")
			}
			if string(resp.StatusCode) != "200" {
				t.Errorf("statusCode = %s", resp.StatusCode)
			}
			if diff := cmp.Diff(tt.want, toolNames(t, resp.Body)); diff != "" {
				t.Errorf("tools mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandle_FiltersWhenMethodIsRepeated(t *testing.T) {
	i := New(testTable())
	for _, req := range []string{
		`{"jsonrpc":"2.0","id":7,"method":"ping","method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":7,"method":"tools/list","Method":"ping"}`,
	} {
		in := mustInput(t, `{"mcp":{"gatewayRequest":{"body":`+req+`},"gatewayResponse":{"statusCode":200,"body":`+listingBody+`}}}`)

		out := i.Handle(context.Background(), in)

		if diff := cmp.Diff([]string{"srv___list_users"}, toolNames(t, out.MCP.TransformedGatewayResponse.Body)); diff != "" {
			t.Errorf("%s: tools mismatch (-want +got):\n%s", req, diff)
		}
	}
}

func TestHandle_PreservesOtherFields(t *testing.T) {
	i := New(testTable())
	out := i.Handle(context.Background(), mustInput(t, envelope("", "tools/list", listingBody)))

	var body map[string]any
	if err := json.Unmarshal(out.MCP.TransformedGatewayResponse.Body, &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body["id"] != float64(7) || body["jsonrpc"] != "2.0" {
		t.Errorf("top-level fields lost: %v", body)
	}
	if body["result"].(map[string]any)["nextCursor"] != "c1" {
		t.Errorf("result fields lost: %v", body["result"])
	}
}

func TestHandle_DefaultStatusCode(t *testing.T) {
	i := New(testTable())
	for _, status := range []string{``, `"statusCode":null,`} {
		in := mustInput(t, `{"mcp":{"gatewayRequest":{"body":{"method":"tools/list"}},"gatewayResponse":{`+status+`"body":`+listingBody+`}}}`)
		out := i.Handle(context.Background(), in)
		if got := string(out.MCP.TransformedGatewayResponse.StatusCode); got != "200" {
			t.Errorf("statusCode = %s, want 200", got)
		}
	}
}

func TestHandle_NonObjectListingBodyPassesThrough(t *testing.T) {
	i := New(testTable())
	out := i.Handle(context.Background(), mustInput(t, envelope("", "tools/list", `"opaque"`)))
	if got := string(out.MCP.TransformedGatewayResponse.Body); got != `"opaque"` {
		t.Errorf("body = %s", got)
	}
}

func TestHandle_NilInput(t *testing.T) {
	out := New(testTable()).Handle(context.Background(), nil)
	if out == nil || out.InterceptorOutputVersion != OutputVersion || out.MCP.TransformedGatewayRequest == nil {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestHandle_NumbersSurvive(t *testing.T) {
	i := New(testTable())
	body := `{"jsonrpc":"2.0","id":9007199254740993,"result":{"tools":[{"name":"list_x","limit":12345678901234567890}]}}`
	out := i.Handle(context.Background(), mustInput(t, envelope("", "tools/list", body)))

	got := string(out.MCP.TransformedGatewayResponse.Body)
	for _, want := range []string{"9007199254740993", "12345678901234567890"} {
		if !strings.Contains(got, want) {
			t.Errorf("body %s lost number %s", got, want)
		}
	}
}

func TestHandle_TokenPaddingVariants(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"cognito:groups":["admin"]}`))
	i := New(testTable())
	out := i.Handle(context.Background(), mustInput(t, envelope("Bearer h."+payload+".s", "tools/list", listingBody)))
	if got := toolNames(t, out.MCP.TransformedGatewayResponse.Body); len(got) != 3 {
		t.Errorf("admin should see all tools, got %v", got)
	}
}

func TestHandle_DecisionLogAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	reader := sdkmetric.NewManualReader()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	inst := observe.NewInstrumentation(nil, metrics, observe.NewLoggerWithWriter("info", &buf))
	i := New(testTable(), WithInstrumentation(inst))

	i.Handle(context.Background(), mustInput(t, envelope("Bearer abc.def", "tools/list", listingBody)))

	logs := buf.String()
	if !strings.Contains(logs, `"msg":"tools filtered"`) || !strings.Contains(logs, `"tools_in":3`) || !strings.Contains(logs, `"tools_out":1`) {
		t.Errorf("missing decision log: %s", logs)
	}
	if !strings.Contains(logs, `"anonymous":true`) {
		t.Errorf("undecodable credential not logged as anonymous: %s", logs)
	}
	if strings.Contains(logs, "abc.def") {
		t.Errorf("credential leaked into logs: %s", logs)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	want := map[string]int64{
		observe.MetricToolsRemoved:   2,
		observe.MetricDecodeFailures: 1,
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			w, ok := want[m.Name]
			if !ok {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			if sum.DataPoints[0].Value != w {
				t.Errorf("%s = %d, want %d", m.Name, sum.DataPoints[0].Value, w)
			}
			delete(want, m.Name)
		}
	}
	if len(want) != 0 {
		t.Errorf("metrics not recorded: %v", want)
	}
}

func TestHandle_LogsExpiredToken(t *testing.T) {
	var buf bytes.Buffer
	inst := observe.NewInstrumentation(nil, nil, observe.NewLoggerWithWriter("info", &buf))
	i := New(testTable(), WithInstrumentation(inst))
	token := mintToken(t, jwt.MapClaims{
		"sub":            "bob",
		"cognito:groups": []string{"reader"},
		"exp":            time.Now().Add(-time.Hour).Unix(),
	})

	out := i.Handle(context.Background(), mustInput(t, envelope("Bearer "+token, "tools/list", listingBody)))

	// Expiry is reported, not enforced.
	if diff := cmp.Diff([]string{"srv___read_document", "srv___list_users"}, toolNames(t, out.MCP.TransformedGatewayResponse.Body)); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}
	logs := buf.String()
	if !strings.Contains(logs, `"token_expired":true`) || !strings.Contains(logs, `"anonymous":false`) {
		t.Errorf("decision log = %s", logs)
	}
}

func TestDecodeInput_Invalid(t *testing.T) {
	for _, data := range []string{`not json`, `{"mcp":"x"}`, `[]`} {
		if _, err := DecodeInput([]byte(data)); err == nil {
			t.Errorf("DecodeInput(%s) expected error", data)
		}
	}
}

func TestDecodeInput_TolerantHeaders(t *testing.T) {
	in, err := DecodeInput([]byte(`{"mcp":{"gatewayRequest":{"headers":"oops","body":{"method":"tools/list"}},"gatewayResponse":{"body":` + listingBody + `}}}`))
	if err != nil {
		t.Fatalf("DecodeInput() error = %v", err)
	}
	out := New(testTable()).Handle(context.Background(), in)
	if diff := cmp.Diff([]string{"srv___list_users"}, toolNames(t, out.MCP.TransformedGatewayResponse.Body)); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}
}
