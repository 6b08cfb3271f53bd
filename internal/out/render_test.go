package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/oftbridge/internal/config"
	"github.com/ggonzalez94/oftbridge/internal/model"
)

func TestRenderJSONSelectResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"a": 1, "b": 2}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"a"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(out) != 1 || out[0]["a"].(float64) != 1 {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, ok := out[0]["b"]; ok {
		t.Fatalf("field projection failed: %s", buf.String())
	}
}

func TestRenderSelectDottedPath(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: map[string]any{
			"tx_hash": "0xabc",
			"quote":   map[string]any{"native_fee": "0.01 ETH", "amount": "10"},
		},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"quote.native_fee", "tx_hash"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if out["quote.native_fee"] != "0.01 ETH" || out["tx_hash"] != "0xabc" || len(out) != 2 {
		t.Fatalf("unexpected projection: %s", buf.String())
	}
}

func TestRenderPlainFlattens(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data:    map[string]any{"direction": "base-to-linea", "token": map[string]any{"symbol": "DTC", "decimals": 18}},
	}
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	if got != "direction=base-to-linea token.decimals=18 token.symbol=DTC" {
		t.Fatalf("unexpected plain output: %q", got)
	}
}

func TestRenderPlainList(t *testing.T) {
	env := model.Envelope{Success: true, Data: []map[string]any{{"slug": "base"}, {"slug": "linea"}}}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain", ResultsOnly: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "slug=base\nslug=linea\n" {
		t.Fatalf("unexpected plain output: %q", buf.String())
	}
}
