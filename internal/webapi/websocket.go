package webapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/kedoruntime/kedo/internal/core"
	"github.com/kedoruntime/kedo/internal/eventloop"
)

const maxWSMessageBytes = 64 * 1024

var wsIDCounter int64

type wsConnEntry struct {
	conn   *websocket.Conn
	closed int32
}

var (
	wsConnsMu sync.Mutex
	wsConns   = map[int]*wsConnEntry{}
)

func wsStore(id int, e *wsConnEntry) {
	wsConnsMu.Lock()
	wsConns[id] = e
	wsConnsMu.Unlock()
}

func wsGet(id int) (*wsConnEntry, bool) {
	wsConnsMu.Lock()
	e, ok := wsConns[id]
	wsConnsMu.Unlock()
	return e, ok
}

func wsDelete(id int) {
	wsConnsMu.Lock()
	delete(wsConns, id)
	wsConnsMu.Unlock()
}

// webSocketJS implements the client-side WebSocket class: connect,
// send, close, and the standard event dispatch surface. Adapted from the
// teacher's websocket.go WebSocketPair peer model down to a plain
// outbound client — this host has no inbound HTTP server to pair a
// server-side socket against.
const webSocketJS = `
(function() {
class WebSocket {
	constructor(url, protocols) {
		if (arguments.length < 1) throw new TypeError("WebSocket requires at least 1 argument(s)");
		this._listeners = {};
		this._readyState = 0;
		this._url = String(url);
		this._protocol = '';
		this._extensions = '';
		this.binaryType = 'arraybuffer';
		this._id = __wsConnect(this._url, protocols ? JSON.stringify([].concat(protocols)) : '[]');
		globalThis.__wsSockets[this._id] = this;
	}

	send(data) {
		if (this._readyState !== 1) {
			throw new DOMException('WebSocket is not open', 'InvalidStateError');
		}
		if (typeof data === 'string') {
			__wsSend(this._id, data, false);
		} else if (data instanceof ArrayBuffer) {
			__wsSend(this._id, __bufferSourceToB64(data), true);
		} else if (ArrayBuffer.isView(data)) {
			__wsSend(this._id, __bufferSourceToB64(data), true);
		} else {
			__wsSend(this._id, String(data), false);
		}
	}

	close(code, reason) {
		if (this._readyState >= 2) return;
		this._readyState = 2;
		__wsClose(this._id, code || 1000, reason || '');
	}

	addEventListener(type, handler) {
		if (!this._listeners[type]) this._listeners[type] = [];
		this._listeners[type].push(handler);
	}

	removeEventListener(type, handler) {
		var list = this._listeners[type];
		if (!list) return;
		this._listeners[type] = list.filter(function(h) { return h !== handler; });
	}

	_dispatch(type, event) {
		var prop = 'on' + type;
		if (typeof this[prop] === 'function') this[prop](event);
		var list = this._listeners[type] || [];
		for (var i = 0; i < list.length; i++) list[i](event);
	}

	get readyState() { return this._readyState; }
	get url() { return this._url; }
	get protocol() { return this._protocol; }
	get extensions() { return this._extensions; }
}

WebSocket.CONNECTING = 0;
WebSocket.OPEN = 1;
WebSocket.CLOSING = 2;
WebSocket.CLOSED = 3;

globalThis.__wsSockets = {};
globalThis.WebSocket = WebSocket;

globalThis.__wsOnOpen = function(id, protocol) {
	var ws = globalThis.__wsSockets[id];
	if (!ws) return;
	ws._readyState = 1;
	ws._protocol = protocol || '';
	ws._dispatch('open', {});
};

globalThis.__wsOnMessage = function(id, data, isBinary) {
	var ws = globalThis.__wsSockets[id];
	if (!ws) return;
	var payload = isBinary ? __b64ToBuffer(data) : data;
	ws._dispatch('message', { data: payload });
};

globalThis.__wsOnClose = function(id, code, reason) {
	var ws = globalThis.__wsSockets[id];
	if (!ws) return;
	ws._readyState = 3;
	delete globalThis.__wsSockets[id];
	ws._dispatch('close', { code: code, reason: reason || '', wasClean: true });
};

globalThis.__wsOnError = function(id, message) {
	var ws = globalThis.__wsSockets[id];
	if (!ws) return;
	ws._dispatch('error', { message: message });
};
})();
`

// SetupWebSocket registers the outbound WebSocket client class and its
// Go-backed connect/send/close functions, wired to a real network
// connection via github.com/coder/websocket rather than the teacher's
// in-process WebSocketPair message bus.
func SetupWebSocket(rt core.JSRuntime, el *eventloop.EventLoop) error {
	if err := rt.RegisterFunc("__wsConnect", func(rawURL, protocolsJSON string) int {
		id := int(atomic.AddInt64(&wsIDCounter, 1))
		el.TrackPromise()

		el.Spawn(fmt.Sprintf("ws-connect#%d", id), func(ctx context.Context) core.Completion {
			conn, _, err := websocket.Dial(ctx, rawURL, nil)
			if err != nil {
				el.UntrackPromise()
				return func(rt core.JSRuntime) {
					_ = rt.Eval(fmt.Sprintf("__wsOnError(%d, %s); __wsOnClose(%d, 1006, %s);",
						id, jsString(err.Error()), id, jsString("connection failed")))
				}
			}
			conn.SetReadLimit(int64(maxWSMessageBytes))
			entry := &wsConnEntry{conn: conn}
			wsStore(id, entry)

			go wsReadLoop(el, id, entry)

			return func(rt core.JSRuntime) {
				_ = rt.Eval(fmt.Sprintf("__wsOnOpen(%d, %s);", id, jsString(conn.Subprotocol())))
			}
		})
		return id
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__wsSend", func(id int, data string, isBinary bool) {
		entry, ok := wsGet(id)
		if !ok || atomic.LoadInt32(&entry.closed) != 0 {
			return
		}
		el.Spawn(fmt.Sprintf("ws-send#%d", id), func(ctx context.Context) core.Completion {
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if isBinary {
				decoded, err := base64.StdEncoding.DecodeString(data)
				if err != nil {
					log.Printf("kedo: websocket send: invalid base64: %v", err)
					return nil
				}
				if err := entry.conn.Write(writeCtx, websocket.MessageBinary, decoded); err != nil {
					log.Printf("kedo: websocket send: %v", err)
				}
			} else {
				if err := entry.conn.Write(writeCtx, websocket.MessageText, []byte(data)); err != nil {
					log.Printf("kedo: websocket send: %v", err)
				}
			}
			return nil
		})
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__wsClose", func(id, code int, reason string) {
		entry, ok := wsGet(id)
		if !ok {
			return
		}
		if !atomic.CompareAndSwapInt32(&entry.closed, 0, 1) {
			return
		}
		el.Spawn(fmt.Sprintf("ws-close#%d", id), func(ctx context.Context) core.Completion {
			_ = entry.conn.Close(websocket.StatusCode(code), reason)
			return nil
		})
	}); err != nil {
		return err
	}

	return rt.Eval(webSocketJS)
}

// wsReadLoop runs for the lifetime of one connection, delivering each
// inbound message as its own NativeJob completion and releasing the
// connect-time TrackPromise exactly once when the socket goes away,
// whether that is a clean close, a peer-initiated close, or a read error.
func wsReadLoop(el *eventloop.EventLoop, id int, entry *wsConnEntry) {
	ctx := context.Background()
	defer func() {
		wsDelete(id)
		el.UntrackPromise()
	}()

	for {
		typ, data, err := entry.conn.Read(ctx)
		if err != nil {
			code := websocket.CloseStatus(err)
			reason := err.Error()
			if code == -1 {
				code = 1006
			}
			el.Spawn(fmt.Sprintf("ws-close#%d", id), func(context.Context) core.Completion {
				return func(rt core.JSRuntime) {
					_ = rt.Eval(fmt.Sprintf("__wsOnClose(%d, %d, %s);", id, code, jsString(reason)))
				}
			})
			return
		}

		isBinary := typ == websocket.MessageBinary
		var payload string
		if isBinary {
			payload = base64.StdEncoding.EncodeToString(data)
		} else {
			payload = string(data)
		}
		el.Spawn(fmt.Sprintf("ws-message#%d", id), func(context.Context) core.Completion {
			return func(rt core.JSRuntime) {
				_ = rt.Eval(fmt.Sprintf("__wsOnMessage(%d, %s, %t);", id, jsString(payload), isBinary))
			}
		})
	}
}
