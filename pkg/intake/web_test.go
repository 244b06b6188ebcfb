package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func postForm(h http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebFormIntakeAcceptsCandidate(t *testing.T) {
	web := NewWebFormIntake(WebConfig{ListenAddr: "127.0.0.1:0"})
	results, err := web.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer web.Stop()

	w := postForm(web.Handler(), url.Values{"ssid": {"HomeNet"}, "passphrase": {"testpass123"}})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /connect status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "HomeNet") {
		t.Errorf("success page does not mention the network: %s", w.Body.String())
	}

	select {
	case r := <-results:
		if r.Err != nil {
			t.Fatalf("result error = %v", r.Err)
		}
		if r.Candidate.SSID() != "HomeNet" || r.Candidate.Passphrase() != "testpass123" {
			t.Errorf("candidate = %s", r.Candidate)
		}
		if r.Candidate.Source() != SourceWeb {
			t.Errorf("source = %v, want web", r.Candidate.Source())
		}
	case <-time.After(time.Second):
		t.Fatal("no candidate on the stream")
	}

	// Disarmed after the first candidate.
	w = postForm(web.Handler(), url.Values{"ssid": {"Other"}, "passphrase": {"testpass123"}})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("second POST status = %d, want 503", w.Code)
	}
}

func TestWebFormIntakePasswordAlias(t *testing.T) {
	web := NewWebFormIntake(WebConfig{ListenAddr: "127.0.0.1:0"})
	results, err := web.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer web.Stop()

	w := postForm(web.Handler(), url.Values{"ssid": {"HomeNet"}, "password": {"testpass123"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if r := <-results; r.Candidate.Passphrase() != "testpass123" {
		t.Errorf("passphrase = %q", r.Candidate.Passphrase())
	}
}

func TestWebFormIntakeRejectsMalformed(t *testing.T) {
	web := NewWebFormIntake(WebConfig{ListenAddr: "127.0.0.1:0"})
	results, err := web.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer web.Stop()

	bad := []url.Values{
		{"ssid": {""}, "passphrase": {"testpass123"}},
		{"ssid": {strings.Repeat("x", 33)}, "passphrase": {"testpass123"}},
		{"ssid": {"HomeNet"}, "passphrase": {"short"}},
	}
	for _, v := range bad {
		w := postForm(web.Handler(), v)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST %v status = %d, want 400", v, w.Code)
		}
	}

	// Still armed.
	w := postForm(web.Handler(), url.Values{"ssid": {"HomeNet"}, "passphrase": {"testpass123"}})
	if w.Code != http.StatusOK {
		t.Fatalf("valid POST after rejections status = %d, want 200", w.Code)
	}
	if r := <-results; r.Err != nil || r.Candidate.SSID() != "HomeNet" {
		t.Errorf("result = %+v", r)
	}
}

func TestWebFormIntakeNotStarted(t *testing.T) {
	web := NewWebFormIntake(WebConfig{})
	w := postForm(web.Handler(), url.Values{"ssid": {"HomeNet"}, "passphrase": {"testpass123"}})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestWebFormIntakeRoutes(t *testing.T) {
	web := NewWebFormIntake(WebConfig{
		Status: func() PortalStatus {
			return PortalStatus{State: "AWAITING_CANDIDATE", Attempt: 1, MaxAttempts: 3}
		},
	})
	h := web.Handler()

	t.Run("Index", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `action="/connect"`) {
			t.Error("index page has no form")
		}
	})

	t.Run("Captive", func(t *testing.T) {
		for _, p := range []string{"/generate_204", "/hotspot-detect.html", "/anything/else"} {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
			if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
				t.Errorf("GET %s = %d %q, want 302 to /", p, w.Code, w.Header().Get("Location"))
			}
		}
	})

	t.Run("Status", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var st PortalStatus
		if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
			t.Fatal(err)
		}
		if st.State != "AWAITING_CANDIDATE" || st.Attempt != 1 || st.MaxAttempts != 3 {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("ConnectMethod", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/connect", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET /connect status = %d, want 405", w.Code)
		}
	})
}

func TestWebFormIntakeServesOverTCP(t *testing.T) {
	web := NewWebFormIntake(WebConfig{ListenAddr: "127.0.0.1:0"})
	results, err := web.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	addr := web.Addr()
	if addr == nil {
		t.Fatal("Addr() = nil after Start")
	}
	resp, err := http.PostForm("http://"+addr.String()+"/connect", url.Values{"ssid": {"HomeNet"}, "passphrase": {"testpass123"}})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	<-results

	if err := web.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if web.Addr() != nil {
		t.Error("Addr() not nil after Stop")
	}

	// Rebinds on the next window.
	if _, err := web.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	web.Stop()
}
