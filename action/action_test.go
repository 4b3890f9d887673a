package action

import (
	"encoding/json"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		`{"type":"click","selector":"#submit"}`,
		`{"type":"type","selector":"#q","text":"hello"}`,
		`{"type":"select","selector":"#opt","value":"a"}`,
		`{"type":"pressKey","key":"Enter"}`,
		`{"type":"hover","selector":"#menu"}`,
		`{"type":"goto","url":"https://example.com"}`,
		`{"type":"wait","ms":500}`,
		`{"type":"scroll","direction":"down","amount":300}`,
		`{"type":"done","result":"task complete"}`,
	}
	for _, raw := range cases {
		a, err := Parse([]byte(raw))
		if err != nil {
			t.Fatalf("Parse(%s) unexpected error: %v", raw, err)
		}
		if Format(a) == "" {
			t.Fatalf("Format(%v) returned empty string", a)
		}
		b, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", a, err)
		}
		again, err := Parse(b)
		if err != nil {
			t.Fatalf("Parse(%s) after round trip: %v", b, err)
		}
		if again != a {
			t.Fatalf("round trip changed the action: %+v != %+v", again, a)
		}
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	if _, err := Parse([]byte(`{"type":"execute_js","code":"alert(1)"}`)); err == nil {
		t.Fatal("expected rejection of execute_js — not part of the LLM-facing action set")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte(`{"type":"click","selector":"#a","extra":"x"}`)); err == nil {
		t.Fatal("expected rejection of unknown key")
	}
}

func TestParseRejectsEmptySelector(t *testing.T) {
	for _, raw := range []string{
		`{"type":"click","selector":""}`,
		`{"type":"click","selector":"   "}`,
	} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("expected rejection for %s", raw)
		}
	}
}

func TestParseRejectsSelectorBlacklist(t *testing.T) {
	for _, raw := range []string{
		`{"type":"click","selector":"javascript:alert(1)"}`,
		`{"type":"click","selector":"<script>x</script>"}`,
		`{"type":"click","selector":"img[onerror=alert(1)]"}`,
		`{"type":"click","selector":"a[href=data:text/html,x]"}`,
	} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("expected blacklist rejection for %s", raw)
		}
	}
}

func TestParseTrustsRoleSelector(t *testing.T) {
	a, err := Parse([]byte(`{"type":"click","selector":"role=button[name=\"Submit\"]"}`))
	if err != nil {
		t.Fatalf("expected role selector to be trusted, got %v", err)
	}
	if a.Selector == "" {
		t.Fatal("expected selector to be preserved")
	}
}

func TestParseRejectsOutOfRangeWait(t *testing.T) {
	for _, raw := range []string{`{"type":"wait","ms":0}`, `{"type":"wait","ms":5001}`} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("expected rejection for %s", raw)
		}
	}
}

func TestParseRejectsBadPressKey(t *testing.T) {
	if _, err := Parse([]byte(`{"type":"pressKey","key":"Ctrl+C"}`)); err == nil {
		t.Fatal("expected rejection of a key outside ALLOWED_KEYS")
	}
}

func TestParseRejectsOversizedText(t *testing.T) {
	big := make([]byte, 1001)
	for i := range big {
		big[i] = 'a'
	}
	raw := `{"type":"type","selector":"#q","text":"` + string(big) + `"}`
	if _, err := Parse([]byte(raw)); err == nil {
		t.Fatal("expected rejection of oversized text")
	}
}

func TestKeyIsStableAcrossIdenticalActions(t *testing.T) {
	a1, _ := Parse([]byte(`{"type":"click","selector":"#a"}`))
	a2, _ := Parse([]byte(`{"type":"click","selector":"#a"}`))
	a3, _ := Parse([]byte(`{"type":"click","selector":"#b"}`))
	if Key(a1) != Key(a2) {
		t.Fatal("expected identical actions to share a Key")
	}
	if Key(a1) == Key(a3) {
		t.Fatal("expected different selectors to produce different Keys")
	}
}
