package timezone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestResolveFallsBackToDefault(t *testing.T) {
	r := New("Europe/Moscow", "", zap.NewNop())

	if got := r.Resolve("Europe/Berlin").String(); got != "Europe/Berlin" {
		t.Fatalf("resolve valid = %s", got)
	}
	if got := r.Resolve("Mars/Olympus").String(); got != "Europe/Moscow" {
		t.Fatalf("resolve unknown = %s, want default", got)
	}
	if got := r.Resolve("").String(); got != "Europe/Moscow" {
		t.Fatalf("resolve empty = %s, want default", got)
	}
}

func TestNewWithBadDefaultUsesUTC(t *testing.T) {
	r := New("Not/AZone", "", zap.NewNop())
	if r.DefaultName() != "UTC" {
		t.Fatalf("default = %s, want UTC", r.DefaultName())
	}
}

func TestValidate(t *testing.T) {
	r := New("UTC", "", zap.NewNop())
	if !r.Validate("Asia/Tokyo") {
		t.Fatal("Asia/Tokyo must validate")
	}
	if r.Validate("") || r.Validate("nope") {
		t.Fatal("empty and bogus names must not validate")
	}
}

func TestDetectByIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"timezone":"Asia/Yekaterinburg"}`))
	}))
	defer srv.Close()

	r := New("Europe/Moscow", srv.URL, zap.NewNop())
	if got := r.DetectByIP(context.Background()); got != "Asia/Yekaterinburg" {
		t.Fatalf("detect = %s", got)
	}
}

func TestDetectByIPFallsBack(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"bad status": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"bad json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{`))
		},
		"bogus zone": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"timezone":"Nowhere/Null"}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			r := New("Europe/Moscow", srv.URL, zap.NewNop())
			if got := r.DetectByIP(context.Background()); got != "Europe/Moscow" {
				t.Fatalf("detect = %s, want default", got)
			}
		})
	}
}
