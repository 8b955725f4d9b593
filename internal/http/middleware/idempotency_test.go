package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup, probe func(*gin.Context)) *gin.Engine {
	r := gin.New()
	r.Use(IdempotencyValidator(opts, lookup))
	r.POST("/bios/:id/polls", func(c *gin.Context) {
		if probe != nil {
			probe(c)
		}
		c.Status(http.StatusCreated)
	})
	return r
}

func TestIdempotencyValidator_NoHeaderIsNoOp(t *testing.T) {
	var sawKey bool
	r := idemRouter(IdempotencyOptions{}, nil, func(c *gin.Context) {
		_, sawKey = GetIdempotencyKey(c)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bios/b1/polls", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if sawKey {
		t.Fatalf("key stashed without header")
	}
}

func TestIdempotencyValidator_InvalidKey(t *testing.T) {
	r := idemRouter(IdempotencyOptions{}, nil, nil)

	for _, bad := range []string{"has space", "emojiéÿ", strings.Repeat("k", 201)} {
		req := httptest.NewRequest(http.MethodPost, "/bios/b1/polls", nil)
		req.Header.Set(HeaderIdempotencyKey, bad)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status = %d, want 400", bad, w.Code)
		}
		if !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Fatalf("key %q: body = %s", bad, w.Body.String())
		}
	}
}

func TestIdempotencyValidator_StashesValidKey(t *testing.T) {
	var got string
	r := idemRouter(IdempotencyOptions{}, nil, func(c *gin.Context) {
		got, _ = GetIdempotencyKey(c)
		if IsReplay(c) {
			t.Fatalf("replay flagged without lookup")
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/bios/b1/polls", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry-1.a_b~c:d")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if got != "retry-1.a_b~c:d" {
		t.Fatalf("stashed key = %q", got)
	}
}

func TestIdempotencyValidator_MarksReplay(t *testing.T) {
	var lookedUp struct {
		user, bio, key string
	}
	lookup := func(_ context.Context, userID, bioID, key string, _ time.Time) (bool, error) {
		lookedUp.user, lookedUp.bio, lookedUp.key = userID, bioID, key
		return true, nil
	}

	var replay, bypass bool
	r := idemRouter(IdempotencyOptions{}, lookup, func(c *gin.Context) {
		replay = IsReplay(c)
		bypass = IsRateBypass(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/bios/b1/polls", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if !replay || !bypass {
		t.Fatalf("replay=%v bypass=%v, want both true", replay, bypass)
	}
	if lookedUp.bio != "b1" || lookedUp.key != "retry-1" {
		t.Fatalf("lookup scope: %+v", lookedUp)
	}
	if lookedUp.user != "demo-user" {
		t.Fatalf("anonymous fallback user = %q", lookedUp.user)
	}
}

func TestIdempotencyValidator_LookupMissIsNormal(t *testing.T) {
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		return false, nil
	}
	var replay bool
	r := idemRouter(IdempotencyOptions{}, lookup, func(c *gin.Context) { replay = IsReplay(c) })

	req := httptest.NewRequest(http.MethodPost, "/bios/b1/polls", nil)
	req.Header.Set(HeaderIdempotencyKey, "first-time")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated || replay {
		t.Fatalf("status=%d replay=%v", w.Code, replay)
	}
}
