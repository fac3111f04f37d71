package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/centrifugal/centrifuge"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
)

const (
	channelPrefix = "matches:"
	brokerPrefix  = "dinnermatch"
	userParam     = "user"
)

// MatchChannel is the channel a user's match celebrations are published on.
func MatchChannel(userID string) string {
	return channelPrefix + userID
}

func NewNode(wsMetrics *metrics.WebSocketMetrics, logLevel string) (*centrifuge.Node, error) {
	conf := centrifuge.Config{LogLevel: parseCentrifugeLogLevel(logLevel), LogHandler: slogHandler}
	node, err := centrifuge.New(conf)
	if err != nil {
		return nil, fmt.Errorf("create centrifuge node: %w", err)
	}

	node.OnConnecting(onConnecting)
	node.OnConnect(onConnect(wsMetrics))

	return node, nil
}

// Authenticate attaches the user named in the query string as connection credentials.
// Requests without a user are rejected before the WebSocket upgrade.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get(userParam))
		if userID == "" {
			http.Error(w, "missing user", http.StatusUnauthorized)
			return
		}

		ctx := centrifuge.SetCredentials(r.Context(), &centrifuge.Credentials{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// onConnecting subscribes the client to its own match channel server-side.
func onConnecting(ctx context.Context, _ centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	cred, ok := centrifuge.GetCredentials(ctx)
	if !ok || cred.UserID == "" {
		return centrifuge.ConnectReply{}, centrifuge.DisconnectServerError
	}

	reply := centrifuge.ConnectReply{
		Subscriptions: map[string]centrifuge.SubscribeOptions{
			MatchChannel(cred.UserID): {},
		},
	}
	return reply, nil
}

func onConnect(wsMetrics *metrics.WebSocketMetrics) func(client *centrifuge.Client) {
	return func(client *centrifuge.Client) {
		slog.Debug("Client connected", "client_id", client.ID(), "user_id", client.UserID())

		if wsMetrics != nil {
			wsMetrics.ActiveConnections.Inc()
		}

		// Clients may only follow their own channel.
		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			if e.Channel != MatchChannel(client.UserID()) {
				cb(centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied)
				return
			}
			cb(centrifuge.SubscribeReply{}, nil)
		})

		client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
			slog.Debug("Client disconnected", "client_id", client.ID(), "reason", e.Reason)
			if wsMetrics != nil {
				wsMetrics.ActiveConnections.Dec()
			}
		})
	}
}

// SetupRedis switches the node to a Redis broker so publishes reach clients on every instance.
func SetupRedis(node *centrifuge.Node, redisAddr string) error {
	shardConfig := centrifuge.RedisShardConfig{Address: redisAddr}
	shard, err := centrifuge.NewRedisShard(node, shardConfig)
	if err != nil {
		return fmt.Errorf("create redis shard: %w", err)
	}

	brokerConfig := centrifuge.RedisBrokerConfig{Prefix: brokerPrefix, Shards: []*centrifuge.RedisShard{shard}}
	broker, err := centrifuge.NewRedisBroker(node, brokerConfig)
	if err != nil {
		return fmt.Errorf("create redis broker: %w", err)
	}
	node.SetBroker(broker)

	return nil
}

func slogHandler(entry centrifuge.LogEntry) {
	attrs := make([]any, 0, len(entry.Fields)*2)
	for k, v := range entry.Fields {
		attrs = append(attrs, k, v)
	}
	switch entry.Level {
	case centrifuge.LogLevelTrace, centrifuge.LogLevelDebug:
		slog.Debug(entry.Message, attrs...)
	case centrifuge.LogLevelInfo:
		slog.Info(entry.Message, attrs...)
	case centrifuge.LogLevelWarn:
		slog.Warn(entry.Message, attrs...)
	case centrifuge.LogLevelError:
		slog.Error(entry.Message, attrs...)
	case centrifuge.LogLevelNone:
		// EMPTY
	}
}

func parseCentrifugeLogLevel(level string) centrifuge.LogLevel {
	switch level {
	case "debug":
		return centrifuge.LogLevelDebug
	case "warn":
		return centrifuge.LogLevelWarn
	case "error":
		return centrifuge.LogLevelError
	default:
		return centrifuge.LogLevelInfo
	}
}
