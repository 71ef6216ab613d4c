package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/session"
	"resumeBuilder/internal/tasks"
	"resumeBuilder/internal/workspace"
)

const (
	wsPingInterval = 30 * time.Second
	wsHelloTimeout = 10 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// Notifier 订阅设备的导出通知频道。
type Notifier interface {
	Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error)
}

// RedisNotifier 基于 Redis Pub/Sub 实现 Notifier。
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error) {
	pubsub := n.client.Subscribe(ctx, channel)
	// 等待订阅确认，连接失败时尽早返回。
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %q: %w", channel, err)
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close, nil
}

// WsHandler 把导出结果与会话事件推送给设备。
type WsHandler struct {
	notifier       Notifier
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
	pingInterval   time.Duration
}

func NewWsHandler(notifier Notifier, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &WsHandler{
		notifier:       notifier,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		pingInterval:   wsPingInterval,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

type wsHelloMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

type wsSessionMessage struct {
	Type  string        `json:"type"`
	Event session.Event `json:"event"`
}

// HandleConnection 升级连接，等待 hello 后开始转发。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	ws, ok := middleware.GetWorkspace(c)
	if !ok {
		Internal(c, "workspace unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
		slog.String("device_id", ws.DeviceID),
	)

	helloCh := make(chan struct{}, 1)
	errCh := make(chan error, 2)

	go h.readLoop(ctx, conn, ws.DeviceID, helloCh, errCh, cancel)

	timer := time.NewTimer(wsHelloTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case err := <-errCh:
		log.Warn("websocket hello failed", slog.Any("error", err))
		return
	case <-timer.C:
		writeClose(conn, websocket.ClosePolicyViolation, "hello timeout")
		log.Warn("websocket hello timeout")
		return
	case <-helloCh:
	}

	log.Info("websocket ready")
	go h.forwardLoop(ctx, conn, ws, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Info("websocket connection closed", slog.Any("error", err))
	}
}

func (h *WsHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	deviceID string,
	helloCh chan<- struct{},
	errCh chan<- error,
	cancel context.CancelFunc,
) {
	greeted := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}
		if ctx.Err() != nil {
			return
		}
		if greeted {
			// 客户端之后的消息只用于保活。
			continue
		}

		var hello wsHelloMessage
		if err := json.Unmarshal(message, &hello); err != nil {
			writeClose(conn, websocket.ClosePolicyViolation, "invalid hello payload")
			errCh <- fmt.Errorf("decode hello payload: %w", err)
			cancel()
			return
		}
		if hello.Type != "hello" {
			writeClose(conn, websocket.ClosePolicyViolation, "hello required")
			errCh <- errors.New("first message is not hello")
			cancel()
			return
		}
		if hello.DeviceID != deviceID {
			writeClose(conn, websocket.ClosePolicyViolation, "device mismatch")
			errCh <- errors.New("hello device id does not match request")
			cancel()
			return
		}
		greeted = true
		helloCh <- struct{}{}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) forwardLoop(
	ctx context.Context,
	conn *websocket.Conn,
	ws *workspace.Workspace,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	fail := func(err error) {
		errCh <- err
		cancel()
	}

	channel := tasks.NotifyChannel(ws.DeviceID)
	notices, closeSub, err := h.notifier.Subscribe(ctx, channel)
	if err != nil {
		fail(err)
		return
	}
	defer func() { _ = closeSub() }()
	log.Info("subscribed to redis channel", slog.String("channel", channel))

	events, unsubscribe := ws.Session.Subscribe(16)
	defer unsubscribe()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-notices:
			if !ok {
				fail(errors.New("pubsub channel closed"))
				return
			}
			if err := h.write(conn, []byte(payload)); err != nil {
				fail(err)
				return
			}
		case ev, ok := <-events:
			if !ok {
				// 工作区被回收。
				writeClose(conn, websocket.CloseGoingAway, "workspace closed")
				fail(errors.New("session subscription closed"))
				return
			}
			data, err := json.Marshal(wsSessionMessage{Type: "session", Event: ev})
			if err != nil {
				log.Error("encode session event failed", slog.Any("error", err))
				continue
			}
			if err := h.write(conn, data); err != nil {
				fail(err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				fail(fmt.Errorf("write ping: %w", err))
				return
			}
		}
	}
}

func (h *WsHandler) write(conn *websocket.Conn, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
