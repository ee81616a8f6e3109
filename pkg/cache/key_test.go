package cache

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "get key",
			key: CacheKey{
				Method: "GET",
				URL:    "https://www.braceletbook.com/media/patterns/123/pattern.svg",
			},
			want: "pattern:GET:https://www.braceletbook.com/media/patterns/123/pattern.svg",
		},
		{
			name: "empty method defaults to GET",
			key: CacheKey{
				URL: "https://braceletbook.com/media/patterns/1/pattern.svg",
			},
			want: "pattern:GET:https://braceletbook.com/media/patterns/1/pattern.svg",
		},
		{
			name: "lowercase method is normalized",
			key: CacheKey{
				Method: "get",
				URL:    "https://braceletbook.com/media/patterns/1/pattern.svg",
			},
			want: "pattern:GET:https://braceletbook.com/media/patterns/1/pattern.svg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewCacheKey_ForcesGet(t *testing.T) {
	target := mustParse(t, "https://www.braceletbook.com/media/patterns/123/pattern.svg")

	key := NewCacheKey(target)
	if key.Method != "GET" {
		t.Errorf("Method = %q, want GET", key.Method)
	}
	if key.URL != target.String() {
		t.Errorf("URL = %q, want %q", key.URL, target.String())
	}
}

// TestCacheKey_Determinism ensures the same target always produces the same key
func TestCacheKey_Determinism(t *testing.T) {
	raw := "https://www.braceletbook.com/media/patterns/123/pattern.svg"

	first := NewCacheKey(mustParse(t, raw)).String()
	for i := 0; i < 10; i++ {
		if got := NewCacheKey(mustParse(t, raw)).String(); got != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, got, first)
		}
	}
}
