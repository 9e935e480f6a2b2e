package webapi

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/http2"

	"github.com/kedoruntime/kedo/internal/core"
	"github.com/kedoruntime/kedo/internal/eventloop"
	"github.com/kedoruntime/kedo/internal/stream"
)

// FetchSSRFEnabled controls whether the SSRF-safe dialer is used for fetch.
// Setting it to false lets fetch reach servers on 127.0.0.1, such as
// httptest servers.
var FetchSSRFEnabled = true

// ForbiddenFetchHeaders is the blocklist of headers a script cannot set
// directly; these are either hop-by-hop or would let a script impersonate
// request metadata the host itself controls.
var ForbiddenFetchHeaders = map[string]bool{
	"host":                true,
	"transfer-encoding":   true,
	"connection":          true,
	"keep-alive":          true,
	"upgrade":             true,
	"proxy-authorization": true,
	"proxy-connection":    true,
	"te":                  true,
	"trailer":             true,
}

// FetchTransport is the http.RoundTripper used by fetch. Tests can
// override it to point at an httptest server without tripping the SSRF
// guard. http2.ConfigureTransport upgrades it to negotiate h2 over TLS,
// matching the teacher's use of golang.org/x/net/http2 for outbound fetch.
var FetchTransport http.RoundTripper = newFetchTransport()

func newFetchTransport() http.RoundTripper {
	t := &http.Transport{DialContext: ssrfSafeDialContext}
	_ = http2.ConfigureTransport(t)
	return t
}

const (
	fetchMaxResponseBytes = 20 * 1024 * 1024
	fetchMaxRedirects     = 20
	fetchTimeout          = 30 * time.Second
)

var fetchIDCounter int64

// fetchJS defines the global fetch() function plus the Headers/Request/
// Response classes it operates on. Grounded on the teacher's fetch.go
// polyfill, stripped of the per-request ctx.waitUntil/signal-to-reqID
// plumbing: a single-process host has one fetch table, not one per request.
const fetchJS = `
(function() {
globalThis.__fetchCallbacks = {};

class Headers {
	constructor(init) {
		this._map = {};
		if (init) {
			if (init instanceof Headers) {
				init.forEach((v, k) => { this._map[k] = v; });
			} else if (Array.isArray(init)) {
				for (const [k, v] of init) this.append(k, v);
			} else if (typeof init === 'object') {
				for (const k in init) if (init.hasOwnProperty(k)) this.set(k, init[k]);
			}
		}
	}
	append(name, value) {
		const k = String(name).toLowerCase();
		if (this._map[k] !== undefined) this._map[k] += ', ' + value;
		else this._map[k] = String(value);
	}
	set(name, value) { this._map[String(name).toLowerCase()] = String(value); }
	get(name) { const v = this._map[String(name).toLowerCase()]; return v === undefined ? null : v; }
	has(name) { return this._map[String(name).toLowerCase()] !== undefined; }
	delete(name) { delete this._map[String(name).toLowerCase()]; }
	forEach(fn) { for (const k in this._map) if (this._map.hasOwnProperty(k)) fn(this._map[k], k, this); }
	*entries() { for (const k in this._map) if (this._map.hasOwnProperty(k)) yield [k, this._map[k]]; }
	[Symbol.iterator]() { return this.entries(); }
}
globalThis.Headers = Headers;

function bodyToBytes(b) {
	if (b == null) return null;
	if (b instanceof ArrayBuffer) return new Uint8Array(b);
	if (ArrayBuffer.isView(b)) return new Uint8Array(b.buffer, b.byteOffset, b.byteLength);
	if (typeof b === 'string') return new TextEncoder().encode(b);
	return new TextEncoder().encode(String(b));
}

class Request {
	constructor(input, init) {
		init = init || {};
		if (input && typeof input === 'object' && input.url) {
			this.url = input.url;
			this.method = init.method || input.method || 'GET';
			this.headers = new Headers(init.headers || input.headers);
			this._body = init.body !== undefined ? init.body : input._body;
		} else {
			this.url = String(input);
			this.method = (init.method || 'GET').toUpperCase();
			this.headers = new Headers(init.headers);
			this._body = init.body !== undefined ? init.body : null;
		}
	}
	clone() { return new Request(this); }
}
globalThis.Request = Request;

class Response {
	constructor(body, init) {
		init = init || {};
		this._bodyBytes = bodyToBytes(body);
		this.status = init.status === undefined ? 200 : init.status;
		this.statusText = init.statusText || '';
		this.ok = this.status >= 200 && this.status < 300;
		this.headers = init.headers instanceof Headers ? init.headers : new Headers(init.headers);
		this.url = init.url || '';
		this.redirected = !!init.redirected;
		this.bodyUsed = false;
	}
	_consume() {
		if (this.bodyUsed) throw new TypeError('body stream already read');
		this.bodyUsed = true;
		return this._bodyBytes || new Uint8Array(0);
	}
	async arrayBuffer() { return this._consume().buffer; }
	async text() { return new TextDecoder().decode(this._consume()); }
	async json() { return JSON.parse(await this.text()); }
	clone() {
		if (this.bodyUsed) throw new TypeError('body stream already read');
		const r = new Response(this._bodyBytes, { status: this.status, statusText: this.statusText, headers: this.headers, url: this.url, redirected: this.redirected });
		return r;
	}
	static error() { return new Response(null, { status: 0, statusText: '' }); }
	static redirect(url, status) { return new Response(null, { status: status || 302, headers: { location: String(url) } }); }
}
globalThis.Response = Response;

function extractHeaders(h) {
	const out = {};
	if (!h) return out;
	if (h instanceof Headers) { h.forEach((v, k) => { out[k] = v; }); return out; }
	if (typeof h === 'object') { for (const k in h) if (h.hasOwnProperty(k)) out[String(k).toLowerCase()] = String(h[k]); }
	return out;
}

globalThis.fetch = function(input, init) {
	let req = input instanceof Request ? input : new Request(input, init || {});
	if (init) {
		if (init.method) req.method = String(init.method).toUpperCase();
		if (init.headers) req.headers = new Headers(init.headers);
		if (init.body !== undefined) req._body = init.body;
	}

	const headers = extractHeaders(req.headers);
	const bytes = bodyToBytes(req._body);
	const bodyB64 = bytes ? __bufferSourceToB64(bytes) : '';

	return new Promise(function(resolve, reject) {
		let id;
		try {
			id = __fetchStart(req.method, req.url, JSON.stringify(headers), bodyB64, bytes !== null);
		} catch (e) {
			reject(e);
			return;
		}
		globalThis.__fetchCallbacks[id] = { resolve: resolve, reject: reject, url: req.url };
	});
};

globalThis.__fetchBuildResponse = function(id, status, statusText, headersJSON, bodyB64, finalURL) {
	const cb = globalThis.__fetchCallbacks[id];
	delete globalThis.__fetchCallbacks[id];
	if (!cb) return;
	const headers = JSON.parse(headersJSON);
	const bodyBuf = bodyB64 ? __b64ToBuffer(bodyB64) : new ArrayBuffer(0);
	const resp = new Response(new Uint8Array(bodyBuf), {
		status: status,
		statusText: statusText,
		headers: headers,
		url: finalURL,
		redirected: finalURL !== cb.url,
	});
	cb.resolve(resp);
};

globalThis.__fetchReject = function(id, message) {
	const cb = globalThis.__fetchCallbacks[id];
	delete globalThis.__fetchCallbacks[id];
	if (cb) cb.reject(new TypeError(message));
};
})();
`

type fetchResult struct {
	status     int
	statusText string
	headers    map[string]string
	body       []byte
	finalURL   string
}

// SetupFetch registers the Go-backed fetch transport and evaluates the
// JS polyfill. Every request runs as a spawned NativeJob: the HTTP round
// trip and response decompression happen off the engine plane, and the
// result is handed back through a single rt.Eval re-entry, per spec.md §5.
func SetupFetch(rt core.JSRuntime, el *eventloop.EventLoop) error {
	err := rt.RegisterFunc("__fetchStart", func(method, rawURL, headersJSON, bodyB64 string, hasBody bool) (int, error) {
		if rawURL == "" {
			return 0, fmt.Errorf("fetch requires a URL")
		}
		if FetchSSRFEnabled && IsPrivateHostname(rawURL) {
			return 0, fmt.Errorf("fetch to private IP addresses is not allowed")
		}

		var headers map[string]string
		if headersJSON != "" && headersJSON != "{}" {
			if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
				return 0, fmt.Errorf("fetch: parsing headers: %s", err.Error())
			}
		}

		var body []byte
		if hasBody && bodyB64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(bodyB64)
			if err != nil {
				return 0, fmt.Errorf("fetch: decoding body: %s", err.Error())
			}
			body = decoded
		}

		id := int(atomic.AddInt64(&fetchIDCounter, 1))
		el.Spawn(fmt.Sprintf("fetch#%d", id), func(ctx context.Context) core.Completion {
			res, ferr := doFetch(ctx, method, rawURL, headers, body)
			return func(rt core.JSRuntime) {
				if ferr != nil {
					_ = rt.Eval(fmt.Sprintf("__fetchReject(%d, %s);", id, jsString(ferr.Error())))
					return
				}
				hdrsJSON, _ := json.Marshal(res.headers)
				_ = rt.Eval(fmt.Sprintf(
					"__fetchBuildResponse(%d, %d, %s, %s, %s, %s);",
					id, res.status, jsString(res.statusText), jsString(string(hdrsJSON)),
					jsString(base64.StdEncoding.EncodeToString(res.body)), jsString(res.finalURL),
				))
			}
		})
		return id, nil
	})
	if err != nil {
		return err
	}

	if err := rt.Eval(fetchJS); err != nil {
		return core.Wrap(core.KindEngine, "evaluating fetch.js", err)
	}
	return nil
}

// jsString renders s as a double-quoted JavaScript string literal.
// strconv.Quote's escaping (backslash, quote, and \n\t\u control
// sequences) is a valid subset of JS string-literal syntax.
func jsString(s string) string {
	return strconv.Quote(s)
}

func doFetch(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) (*fetchResult, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = strings.NewReader(string(body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s", err.Error())
	}
	for k, v := range headers {
		if ForbiddenFetchHeaders[strings.ToLower(k)] {
			continue
		}
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", "gzip, br")
	}

	client := &http.Client{
		Timeout:   fetchTimeout,
		Transport: FetchTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= fetchMaxRedirects {
				return fmt.Errorf("too many redirects")
			}
			if FetchSSRFEnabled && IsPrivateHostname(req.URL.String()) {
				return fmt.Errorf("redirect to private IP address is not allowed")
			}
			return nil
		},
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s", err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	bodyReaderDecoded, encoding := decompressingReader(resp)
	raw, err := streamBody(ctx, bodyReaderDecoded, fetchMaxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading body: %s", err.Error())
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k, vals := range resp.Header {
		lk := strings.ToLower(k)
		if encoding != "" && (lk == "content-encoding" || lk == "content-length") {
			continue
		}
		respHeaders[lk] = strings.Join(vals, ", ")
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &fetchResult{
		status:     resp.StatusCode,
		statusText: strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "),
		headers:    respHeaders,
		body:       raw,
		finalURL:   finalURL,
	}, nil
}

// decompressingReader wraps resp.Body in a decoder for the br/gzip/
// deflate content-encodings so fetch() always hands the script decoded
// bytes, the way a browser's fetch does. Returns "" for encoding when no
// wrapping was needed (headers are passed through unchanged in that case).
func decompressingReader(resp *http.Response) (io.Reader, string) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "br":
		return brotli.NewReader(resp.Body), enc
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return resp.Body, ""
		}
		return gz, enc
	case "deflate":
		return flate.NewReader(resp.Body), enc
	default:
		return resp.Body, ""
	}
}

// streamBody drains r through a stream.ChannelBuffer so the read runs
// under the bounded-backpressure bridge built to hand bytes back across the executor/engine-plane boundary
// (spec.md §4.5), rather than a bare io.ReadAll.
func streamBody(ctx context.Context, r io.Reader, maxBytes int) ([]byte, error) {
	buf := stream.NewChannelBuffer(4)

	go func() {
		chunk := make([]byte, 32*1024)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				c := make([]byte, n)
				copy(c, chunk[:n])
				if werr := buf.Write(ctx, c); werr != nil {
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					buf.Close(nil)
				} else {
					buf.Close(err)
				}
				return
			}
		}
	}()

	if !buf.AcquireReader() {
		return nil, fmt.Errorf("internal: channel buffer reader already acquired")
	}

	var out []byte
	for {
		chunk, err := buf.Read(ctx)
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, err
		}
		out = append(out, chunk...)
		if len(out) > maxBytes {
			return out[:maxBytes], nil
		}
	}
}

// --- SSRF protection ---

// IsPrivateHostname performs a fast, non-resolving pre-check for obviously
// private hostnames and literal IP addresses.
func IsPrivateHostname(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	hostname := u.Hostname()
	if hostname == "" {
		return true
	}
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return IsPrivateIP(ip)
	}
	return false
}

// ssrfSafeDialContext resolves DNS and validates the resolved IP against
// private ranges at connect time, preventing DNS rebinding / TOCTOU attacks.
func ssrfSafeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %s: %w", host, err)
	}
	var safeIP net.IPAddr
	found := false
	for _, ip := range ips {
		if !IsPrivateIP(ip.IP) {
			safeIP = ip
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("fetch to private IP addresses is not allowed")
	}
	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, net.JoinHostPort(safeIP.IP.String(), port))
}

// privateRanges is parsed once at init time.
var privateRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8", "10.0.0.0/8", "100.64.0.0/10", "127.0.0.0/8",
		"169.254.0.0/16", "172.16.0.0/12", "192.0.0.0/24", "192.0.2.0/24",
		"192.168.0.0/16", "198.18.0.0/15", "198.51.100.0/24", "203.0.113.0/24",
		"240.0.0.0/4",
		"::1/128", "fc00::/7", "fe80::/10",
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid CIDR: " + cidr)
		}
		privateRanges = append(privateRanges, n)
	}
}

// IsPrivateIP returns true if the IP is in a private, loopback, or link-local range.
func IsPrivateIP(ip net.IP) bool {
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
