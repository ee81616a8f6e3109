// Package proxy implements the validating, caching pattern proxy:
// validate the target URL, answer from cache when possible, otherwise fetch
// from BraceletBook, annotate the response, store it in the background and
// return it.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/pattern-proxy/pkg/cache"
	"github.com/Sternrassler/pattern-proxy/pkg/upstream"
)

const (
	// HeaderCache reports the cache outcome of a proxied response.
	HeaderCache = "X-Cache"

	CacheHit  = "hit"
	CacheMiss = "miss"

	// CacheControl is attached to every fresh response and drives the
	// 24 hour lifetime of the stored entry.
	CacheControl = "public, max-age=86400"

	// ContentTypeSVG overrides whatever content type the upstream sent.
	ContentTypeSVG = "image/svg+xml; charset=utf-8"
)

// hopHeaders are connection-level headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetcher performs the upstream request and buffers its body within the
// configured size limit. *upstream.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, method, target string) (*http.Response, error)
	ReadBody(resp *http.Response) ([]byte, error)
}

// Handler serves GET /api/proxy.
type Handler struct {
	store   cache.Store
	fetcher Fetcher
	tasks   *TaskGroup
	logger  zerolog.Logger
}

// NewHandler wires the pipeline to its collaborators.
func NewHandler(store cache.Store, fetcher Fetcher, tasks *TaskGroup) *Handler {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	logger := log.With().Str("component", "proxy").Logger()
	if tasks == nil {
		tasks = NewTaskGroup(DefaultTaskTimeout, logger)
	}
	return &Handler{
		store:   store,
		fetcher: fetcher,
		tasks:   tasks,
		logger:  logger,
	}
}

// ServeHTTP runs the pipeline and writes either the pattern or a JSON error.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.proxy(r)
	if err != nil {
		e := asError(err)
		proxyRequestsTotal.WithLabelValues(outcomeLabels[e.Kind]).Inc()
		h.logError(r, e)
		writeJSONError(w, e)
		return
	}
	defer resp.Body.Close()

	proxyRequestsTotal.WithLabelValues(resp.Header.Get(HeaderCache)).Inc()
	writeResponse(w, resp)
}

// proxy executes the pipeline stages in order. Any panic is converted into
// an error so that it surfaces as a ProxyError.
func (h *Handler) proxy(r *http.Request) (resp *http.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = nil
			err = fmt.Errorf("%v", rec)
		}
	}()

	ctx := r.Context()

	raw := r.URL.Query().Get(TargetParam)
	if raw == "" {
		return nil, errMissingParameter
	}

	target, err := ParseTarget(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	key := cache.NewCacheKey(target)
	logger := h.logger.With().Str("cache_key", key.String()).Logger()

	entry, err := h.store.Match(ctx, key)
	switch {
	case err == nil:
		logger.Debug().Msg("Cache hit")
		resp := cache.EntryToResponse(entry)
		resp.Header.Set(HeaderCache, CacheHit)
		return resp, nil
	case errors.Is(err, cache.ErrCacheMiss):
		logger.Debug().Msg("Cache miss")
	case errors.Is(err, cache.ErrInvalidEntry):
		logger.Warn().Err(err).Msg("Discarded corrupt cache entry")
	default:
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	upstreamResp, err := h.fetcher.Fetch(ctx, r.Method, target.String())
	if err != nil {
		return nil, err
	}
	if !upstream.IsSuccess(upstreamResp.StatusCode) {
		upstreamResp.Body.Close()
		return nil, upstreamError(upstreamResp.StatusCode)
	}

	body, err := h.fetcher.ReadBody(upstreamResp)
	if err != nil {
		return nil, err
	}
	resp = shapeResponse(upstreamResp, body)

	stored, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, err
	}
	stored.Headers.Del("Set-Cookie")

	h.tasks.Go(ctx, "cache-put", func(ctx context.Context) error {
		if err := h.store.Put(ctx, key, stored); err != nil {
			return fmt.Errorf("cache put %s: %w", key, err)
		}
		logger.Debug().Dur("ttl", stored.TTL()).Msg("Cached response")
		return nil
	})

	return resp, nil
}

// shapeResponse builds the client response from a successful upstream
// response: upstream headers minus hop-by-hop ones, then the proxy's own.
func shapeResponse(upstreamResp *http.Response, body []byte) *http.Response {
	header := upstreamResp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Del("Content-Length")

	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", http.MethodGet)
	header.Set("Cache-Control", CacheControl)
	header.Set("Content-Type", ContentTypeSVG)
	header.Set(HeaderCache, CacheMiss)

	return &http.Response{
		Status:        upstreamResp.Status,
		StatusCode:    upstreamResp.StatusCode,
		Proto:         upstreamResp.Proto,
		ProtoMajor:    upstreamResp.ProtoMajor,
		ProtoMinor:    upstreamResp.ProtoMinor,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func writeResponse(w http.ResponseWriter, resp *http.Response) {
	dst := w.Header()
	for k, vv := range resp.Header {
		if k == "Content-Length" {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	if resp.ContentLength >= 0 {
		dst.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (h *Handler) logError(r *http.Request, e *Error) {
	var event *zerolog.Event
	switch e.Kind {
	case KindProxyError:
		event = h.logger.Error().Err(e.Err)
	case KindUpstreamError:
		event = h.logger.Warn()
	default:
		event = h.logger.Debug()
	}
	event.
		Str("error_kind", string(e.Kind)).
		Int("status", e.Status).
		Str("target", r.URL.Query().Get(TargetParam)).
		Msg(e.Message)
}
