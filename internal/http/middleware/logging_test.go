package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		rid, _ := c.Get(requestIDKey)
		c.String(http.StatusOK, asString(rid))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	rid := w.Header().Get(requestIDHeader)
	if rid == "" {
		t.Fatalf("no request id header")
	}
	if _, err := uuid.Parse(rid); err != nil {
		t.Fatalf("generated id is not a uuid: %q", rid)
	}
	if w.Body.String() != rid {
		t.Fatalf("context id %q != header %q", w.Body.String(), rid)
	}
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "client-id-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "client-id-1" {
		t.Fatalf("id not propagated: %q", got)
	}
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"code":"internal_error"`) {
		t.Fatalf("unexpected body: %s", body)
	}
	if !strings.Contains(body, `"request_id"`) {
		t.Fatalf("correlation id missing: %s", body)
	}
}

func TestLogger_AttachesRequestLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(LogOptions{}))
	r.GET("/", func(c *gin.Context) {
		if LoggerFrom(c) == nil {
			t.Fatalf("no request-scoped logger")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLoggerFrom_FallbackIsNeverNil(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("fallback logger is nil")
	}
}

func TestScrub(t *testing.T) {
	cases := []struct{ in, want string }{
		{"voter@example.com voted", "[EMAIL] voted"},
		{"id=0f8fad5b-d9cb-469f-a165-70867728950e", "id=[UUID]"},
		{"call +1 (555) 123-4567 now", "call [PHONE] now"},
		{"", ""},
		{"clean text", "clean text"},
	}
	for _, tc := range cases {
		if got := scrub(tc.in); got != tc.want {
			t.Fatalf("scrub(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	// A UUID must become [UUID], not a partial [PHONE] match on its digits.
	got := scrub("0f8fad5b-d9cb-469f-a165-70867728950e")
	if strings.Contains(got, "[PHONE]") {
		t.Fatalf("uuid mangled by phone pattern: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("abcdefgh", 4); got != "abcd…" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("anything", 0); got != "anything" {
		t.Fatalf("zero max should disable truncation, got %q", got)
	}
}
