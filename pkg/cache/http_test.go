package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		wantTTL time.Duration
		wantErr bool
	}{
		{
			name: "shaped pattern response",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Cache-Control": []string{"public, max-age=86400"},
					"Content-Type":  []string{"image/svg+xml; charset=utf-8"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`<svg></svg>`))),
			},
			wantTTL: 24 * time.Hour,
		},
		{
			name: "response without freshness headers",
			resp: &http.Response{
				StatusCode: 200,
				Header:     http.Header{},
				Body:       io.NopCloser(bytes.NewReader([]byte(`<svg></svg>`))),
			},
			wantTTL: DefaultTTL,
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			// Verify body was read and restored
			body, _ := io.ReadAll(tt.resp.Body)
			if !bytes.Equal(body, entry.Data) {
				t.Errorf("restored body = %q, entry data = %q", body, entry.Data)
			}

			if entry.StatusCode != tt.resp.StatusCode {
				t.Errorf("StatusCode = %v, want %v", entry.StatusCode, tt.resp.StatusCode)
			}

			diff := entry.TTL() - tt.wantTTL
			if diff < -2*time.Second || diff > 2*time.Second {
				t.Errorf("TTL() = %v, want about %v", entry.TTL(), tt.wantTTL)
			}
		})
	}
}

func TestParseExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		headers http.Header
		want    time.Time
	}{
		{
			name:    "max-age",
			headers: http.Header{"Cache-Control": []string{"public, max-age=86400"}},
			want:    now.Add(24 * time.Hour),
		},
		{
			name:    "s-maxage wins over max-age",
			headers: http.Header{"Cache-Control": []string{"max-age=60, s-maxage=120"}},
			want:    now.Add(120 * time.Second),
		},
		{
			name:    "no-store expires immediately",
			headers: http.Header{"Cache-Control": []string{"no-store, max-age=600"}},
			want:    now,
		},
		{
			name:    "private expires immediately",
			headers: http.Header{"Cache-Control": []string{"private, max-age=600"}},
			want:    now,
		},
		{
			name:    "invalid max-age falls back to default",
			headers: http.Header{"Cache-Control": []string{"max-age=soon"}},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "expires header",
			headers: http.Header{"Expires": []string{now.Add(time.Hour).Format(http.TimeFormat)}},
			want:    now.Add(time.Hour),
		},
		{
			name:    "expires in the past",
			headers: http.Header{"Expires": []string{now.Add(-time.Hour).Format(http.TimeFormat)}},
			want:    now,
		},
		{
			name:    "invalid expires header",
			headers: http.Header{"Expires": []string{"not a valid date"}},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "no headers",
			headers: http.Header{},
			want:    now.Add(DefaultTTL),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseExpires(tt.headers, now); !got.Equal(tt.want) {
				t.Errorf("parseExpires() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &CacheEntry{
		Data:       []byte(`<svg id="a"></svg>`),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"image/svg+xml; charset=utf-8"}},
		Expires:    time.Now().Add(time.Hour),
	}

	resp := EntryToResponse(entry)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(entry.Data) {
		t.Errorf("body = %q, want %q", body, entry.Data)
	}

	resp.Header.Set("X-Cache", "hit")
	if entry.Headers.Get("X-Cache") != "" {
		t.Error("mutating response headers changed the entry")
	}

	if EntryToResponse(nil) != nil {
		t.Error("EntryToResponse(nil) should be nil")
	}
}
