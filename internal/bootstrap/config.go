package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerURL  string
	SocketPath string
	Transports []string

	Upgrade         bool
	RememberUpgrade bool

	Reconnect         bool
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	ConnectTimeout    time.Duration

	HTTPTimeout time.Duration

	ViewerAddr      string
	ViewerRateRPS   float64
	ViewerRateBurst int

	FPSInterval     time.Duration
	NotificationTTL time.Duration

	ConsoleEnabled bool
	LogLevel       string
}

func LoadConfig() *Config {
	return &Config{
		ServerURL:  getEnv("SERVER_URL", "http://127.0.0.1:5000"),
		SocketPath: getEnv("SOCKET_PATH", "/socket.io/"),
		Transports: parseList(getEnv("SOCKET_TRANSPORTS", "polling,websocket")),

		Upgrade:         getEnvBool("SOCKET_UPGRADE", true),
		RememberUpgrade: getEnvBool("SOCKET_REMEMBER_UPGRADE", true),

		Reconnect:         getEnvBool("SOCKET_RECONNECT", true),
		ReconnectDelay:    getEnvMillis("SOCKET_RECONNECT_DELAY_MS", 1000),
		ReconnectDelayMax: getEnvMillis("SOCKET_RECONNECT_DELAY_MAX_MS", 5000),
		ConnectTimeout:    getEnvMillis("SOCKET_CONNECT_TIMEOUT_MS", 20000),

		HTTPTimeout: getEnvMillis("HTTP_TIMEOUT_MS", 30000),

		ViewerAddr:      getEnv("VIEWER_ADDR", "127.0.0.1:8090"),
		ViewerRateRPS:   float64(getEnvInt("VIEWER_RATE_RPS", 10)),
		ViewerRateBurst: getEnvInt("VIEWER_RATE_BURST", 20),

		FPSInterval:     getEnvMillis("FPS_INTERVAL_MS", 1000),
		NotificationTTL: getEnvMillis("NOTIFICATION_TTL_MS", 5000),

		ConsoleEnabled: getEnvBool("CONSOLE_ENABLED", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Millisecond
}

func parseList(envValue string) []string {
	var items []string
	for _, item := range strings.Split(envValue, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
