package config

import "time"

// RealtimeConfig holds websocket gateway and presence settings.
type RealtimeConfig struct {
	AllowedOrigins []string      // empty means any origin is accepted
	PingInterval   time.Duration // server ping period; read deadline is derived from it
	WriteTimeout   time.Duration // deadline for a single frame write
	SendBuffer     int           // queued outbound frames per connection before it is dropped
	MaxMessageSize int64         // inbound frame limit in bytes
	RefCount       bool          // count connections per user before marking them offline
	RelayChannel   string        // Redis pub/sub channel used to fan emits out to all instances
}

// LoadRealtimeConfig reads WS_*, PRESENCE_* and REALTIME_* variables.
func LoadRealtimeConfig() RealtimeConfig {
	cfg := RealtimeConfig{
		AllowedOrigins: envList("WS_ALLOWED_ORIGINS"),
		PingInterval:   envDur("WS_PING_INTERVAL", 25*time.Second),
		WriteTimeout:   envDur("WS_WRITE_TIMEOUT", 10*time.Second),
		SendBuffer:     envInt("WS_SEND_BUFFER", 64),
		MaxMessageSize: int64(envInt("WS_MAX_MESSAGE_BYTES", 4096)),
		RefCount:       envBool("PRESENCE_REFCOUNT", false),
		RelayChannel:   envStr("REALTIME_RELAY_CHANNEL", "realtime:emit"),
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}
	return cfg
}
