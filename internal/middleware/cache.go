package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/config"
)

// Cached responses of one path live in a single Redis hash keyed by
// "<prefix>:<path>", one field per method/query variant.  Dropping the hash
// invalidates every variant at once.

type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

// captureWriter tees the response body (up to limit bytes) while
// forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size < cw.limit {
		keep := b
		if cw.limit > 0 && int64(len(b)) > cw.limit-cw.size {
			keep = b[:cw.limit-cw.size]
		}
		cw.buf.Write(keep)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

func pathKey(prefix, path string) string {
	if prefix == "" {
		prefix = "cache"
	}
	return prefix + ":" + path
}

// cacheSlot returns the hash key and field a request is cached under.
// KeyStrategy decides how much of the request beyond the path matters:
// route, method_route, method_route_query or route_query (default).
func cacheSlot(cfg config.CacheConfig, c echo.Context) (key, field string) {
	r := c.Request()
	key = pathKey(cfg.Prefix, r.URL.Path)
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		field = "*"
	case "method_route":
		field = r.Method
	case "method_route_query":
		field = r.Method + "?" + r.URL.RawQuery
	default:
		field = "?" + r.URL.RawQuery
	}
	return key, field
}

// NewRedisCache serves repeated reads from Redis, headers included.
// Only 200 responses of cfg.Methods are stored, and bodies larger than
// cfg.MaxBodyBytes are served but not stored.  Redis failures fall back to
// the handler.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	maxBody := int64(cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key, field := cacheSlot(cfg, c)

			if bs, err := rdb.HGet(ctx, key, field).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(bs, &hit) == nil && hit.Status != 0 {
					h := c.Response().Header()
					for k, vals := range hit.Header {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						h[k] = vals
					}
					h.Set("X-Cache", "HIT")
					c.Response().WriteHeader(hit.Status)
					_, err := c.Response().Write(hit.Body)
					return err
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
			if err != nil {
				return nil
			}
			// the request may already be gone; the write should still land
			store := context.WithoutCancel(ctx)
			_, _ = rdb.TxPipelined(store, func(p redis.Pipeliner) error {
				p.HSet(store, key, field, payload)
				p.Expire(store, key, ttl)
				return nil
			})
			return nil
		}
	}
}

// PropertyCache drops cached property views after their calendar changes.
type PropertyCache struct {
	rdb    keyDeleter
	prefix string
	settle time.Duration
	log    logrus.FieldLogger
}

type keyDeleter interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewPropertyCache returns nil when caching is off; a nil *PropertyCache is
// a valid no-op.
func NewPropertyCache(cfg config.CacheConfig, rdb *redis.Client, log logrus.FieldLogger) *PropertyCache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PropertyCache{rdb: rdb, prefix: cfg.Prefix, settle: cfg.InvalidateDelay, log: log}
}

// PropertyPath is the public detail route whose responses are cached.
func PropertyPath(id uint64) string {
	return "/v1/properties/" + strconv.FormatUint(id, 10)
}

// InvalidateProperty deletes every cached variant of the property view,
// and deletes it again after the settle delay.  A GET that read the
// property before the change committed may store its response after the
// first delete; the second one removes it.
func (pc *PropertyCache) InvalidateProperty(ctx context.Context, id uint64) {
	if pc == nil {
		return
	}
	key := pathKey(pc.prefix, PropertyPath(id))
	ctx = context.WithoutCancel(ctx)
	pc.del(ctx, key)
	if pc.settle > 0 {
		time.AfterFunc(pc.settle, func() { pc.del(ctx, key) })
	}
}

func (pc *PropertyCache) del(ctx context.Context, key string) {
	if err := pc.rdb.Del(ctx, key).Err(); err != nil {
		pc.log.WithError(err).WithField("key", key).Warn("cache: invalidate failed")
	}
}
