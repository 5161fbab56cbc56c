package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	// envVarPort mirrors the historical deployment contract: a bare port
	// number. ICHAT_LISTEN_ADDR takes precedence when both are set.
	envVarPort       = "PORT"
	envVarListenAddr = "ICHAT_LISTEN_ADDR"

	envVarTLSCertFile = "ICHAT_TLS_CERT_FILE"
	envVarTLSKeyFile  = "ICHAT_TLS_KEY_FILE"

	envVarDBPath = "ICHAT_DB_PATH"

	envVarMode            = "ICHAT_MODE"
	envVarLogFormat       = "ICHAT_LOG_FORMAT"
	envVarLogLevel        = "ICHAT_LOG_LEVEL"
	envVarShutdownTimeout = "ICHAT_SHUTDOWN_TIMEOUT"

	// Credential gateway.
	envVarRevealToken       = "ICHAT_REVEAL_TOKEN"
	envVarRevealWindow      = "ICHAT_REVEAL_WINDOW"
	envVarRevealMaxAttempts = "ICHAT_REVEAL_MAX_ATTEMPTS"

	// Signaling hardening.
	envVarHeartbeatInterval    = "ICHAT_HEARTBEAT_INTERVAL"
	envVarMaxMessageBytes      = "ICHAT_MAX_MESSAGE_BYTES"
	envVarMaxMessagesPerSecond = "ICHAT_MAX_MESSAGES_PER_SECOND"
	envVarSendQueueLength      = "ICHAT_SEND_QUEUE_LENGTH"

	// coturn TURN REST (ephemeral) credentials for revealed /ice responses.
	envVarTURNRESTSharedSecret   = "ICHAT_TURN_REST_SHARED_SECRET"
	envVarTURNRESTTTLSeconds     = "ICHAT_TURN_REST_TTL_SECONDS"
	envVarTURNRESTUsernamePrefix = "ICHAT_TURN_REST_USERNAME_PREFIX"
	envVarTURNRESTRealm          = "ICHAT_TURN_REST_REALM"
)

const (
	DefaultListenAddr      = ":8080"
	DefaultDBPath          = "ichat-users.db"
	DefaultShutdown        = 15 * time.Second
	DefaultMode       Mode = ModeDev

	DefaultRevealWindow      = time.Minute
	DefaultRevealMaxAttempts = 10

	DefaultHeartbeatInterval          = 30 * time.Second
	DefaultMaxMessageBytes      int64 = 64 * 1024
	DefaultMaxMessagesPerSecond       = 50
	DefaultSendQueueLength            = 64

	DefaultTURNRESTTTLSeconds     int64 = 3600
	DefaultTURNRESTUsernamePrefix       = "ichat"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type TurnRESTConfig struct {
	SharedSecret   string
	TTLSeconds     int64
	UsernamePrefix string
	Realm          string
}

func (c TurnRESTConfig) Enabled() bool {
	return strings.TrimSpace(c.SharedSecret) != ""
}

type Config struct {
	ListenAddr  string
	TLSCertFile string
	TLSKeyFile  string

	DBPath string

	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// Credential gateway.
	RevealToken       string
	RevealWindow      time.Duration
	RevealMaxAttempts int

	// Signaling hardening.
	HeartbeatInterval    time.Duration
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	SendQueueLength      int

	ICEServers []webrtc.ICEServer
	TURNREST   TurnRESTConfig
}

func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	listenAddr := envOrDefault(lookup, envVarListenAddr, "")
	if listenAddr == "" {
		if port, ok := lookup(envVarPort); ok && strings.TrimSpace(port) != "" {
			p, err := strconv.Atoi(strings.TrimSpace(port))
			if err != nil || p < 1 || p > 65535 {
				return Config{}, fmt.Errorf("invalid %s %q", envVarPort, port)
			}
			listenAddr = ":" + strconv.Itoa(p)
		} else {
			listenAddr = DefaultListenAddr
		}
	}

	tlsCertFile := envOrDefault(lookup, envVarTLSCertFile, "")
	tlsKeyFile := envOrDefault(lookup, envVarTLSKeyFile, "")
	dbPath := envOrDefault(lookup, envVarDBPath, DefaultDBPath)

	modeDefault := string(DefaultMode)
	if raw, ok := lookup(envVarMode); ok && strings.TrimSpace(raw) != "" {
		modeDefault = strings.TrimSpace(raw)
	}

	envLogFormat, envLogFormatOK := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormatOK && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, envLogLevelOK := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevelOK && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	shutdownTimeout := DefaultShutdown
	if raw, ok := lookup(envVarShutdownTimeout); ok && strings.TrimSpace(raw) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarShutdownTimeout, raw, err)
		}
		shutdownTimeout = d
	}

	revealToken := envOrDefault(lookup, envVarRevealToken, "")

	revealWindow := DefaultRevealWindow
	if raw, ok := lookup(envVarRevealWindow); ok && strings.TrimSpace(raw) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarRevealWindow, raw, err)
		}
		revealWindow = d
	}

	revealMaxAttempts, err := envIntOrDefault(lookup, envVarRevealMaxAttempts, DefaultRevealMaxAttempts)
	if err != nil {
		return Config{}, err
	}

	heartbeatInterval := DefaultHeartbeatInterval
	if raw, ok := lookup(envVarHeartbeatInterval); ok && strings.TrimSpace(raw) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarHeartbeatInterval, raw, err)
		}
		heartbeatInterval = d
	}

	maxMessageBytes := DefaultMaxMessageBytes
	if raw, ok := lookup(envVarMaxMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxMessageBytes, raw, err)
		}
		maxMessageBytes = n
	}

	maxMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxMessagesPerSecond, DefaultMaxMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}

	sendQueueLength, err := envIntOrDefault(lookup, envVarSendQueueLength, DefaultSendQueueLength)
	if err != nil {
		return Config{}, err
	}

	iceServersJSON := envOrDefault(lookup, envICEServersJSON, "")
	stunURLs := envOrDefault(lookup, envStunURLs, "")
	turnURLs := envOrDefault(lookup, envTurnURLs, "")
	turnUsername := envOrDefault(lookup, envTurnUsername, "")
	turnCredential := envOrDefault(lookup, envTurnCredential, "")

	turnRESTSharedSecret := envOrDefault(lookup, envVarTURNRESTSharedSecret, "")
	turnRESTTTLSeconds := DefaultTURNRESTTTLSeconds
	if raw, ok := lookup(envVarTURNRESTTTLSeconds); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarTURNRESTTTLSeconds, raw, err)
		}
		turnRESTTTLSeconds = n
	}
	turnRESTUsernamePrefix := envOrDefault(lookup, envVarTURNRESTUsernamePrefix, DefaultTURNRESTUsernamePrefix)
	turnRESTRealm := envOrDefault(lookup, envVarTURNRESTRealm, "")

	fs := flag.NewFlagSet("ichat-signald", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "Listen address (host:port; env "+envVarListenAddr+" or "+envVarPort+")")
	fs.StringVar(&tlsCertFile, "tls-cert-file", tlsCertFile, "TLS certificate file; enables wss/https when set with --tls-key-file (env "+envVarTLSCertFile+")")
	fs.StringVar(&tlsKeyFile, "tls-key-file", tlsKeyFile, "TLS private key file (env "+envVarTLSKeyFile+")")
	fs.StringVar(&dbPath, "db-path", dbPath, "SQLite database path for persisted identities (env "+envVarDBPath+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s)")
	fs.StringVar(&revealToken, "reveal-token", revealToken, "Bearer token that unlocks unmasked credential responses (env "+envVarRevealToken+")")
	fs.DurationVar(&revealWindow, "reveal-window", revealWindow, "Rate-limit window for failed reveal attempts (env "+envVarRevealWindow+")")
	fs.IntVar(&revealMaxAttempts, "reveal-max-attempts", revealMaxAttempts, "Failed reveal attempts allowed per source per window (env "+envVarRevealMaxAttempts+")")
	fs.DurationVar(&heartbeatInterval, "heartbeat-interval", heartbeatInterval, "Liveness sweep period for client connections (env "+envVarHeartbeatInterval+")")
	fs.Int64Var(&maxMessageBytes, "max-message-bytes", maxMessageBytes, "Max inbound signaling message size in bytes (env "+envVarMaxMessageBytes+")")
	fs.IntVar(&maxMessagesPerSecond, "max-messages-per-second", maxMessagesPerSecond, "Max inbound signaling messages per second per connection (env "+envVarMaxMessagesPerSecond+")")
	fs.IntVar(&sendQueueLength, "send-queue-length", sendQueueLength, "Outbound message queue length per connection (env "+envVarSendQueueLength+")")
	fs.StringVar(&iceServersJSON, "ice-servers-json", iceServersJSON, "ICE server JSON config (env "+envICEServersJSON+")")
	fs.StringVar(&stunURLs, "stun-urls", stunURLs, "Comma-separated STUN URLs (env "+envStunURLs+")")
	fs.StringVar(&turnURLs, "turn-urls", turnURLs, "Comma-separated TURN URLs (env "+envTurnURLs+")")
	fs.StringVar(&turnUsername, "turn-username", turnUsername, "TURN username (env "+envTurnUsername+")")
	fs.StringVar(&turnCredential, "turn-credential", turnCredential, "TURN credential (env "+envTurnCredential+")")
	fs.StringVar(&turnRESTSharedSecret, "turn-rest-shared-secret", turnRESTSharedSecret, "TURN REST shared secret ("+envVarTURNRESTSharedSecret+")")
	fs.Int64Var(&turnRESTTTLSeconds, "turn-rest-ttl-seconds", turnRESTTTLSeconds, "TURN REST credential TTL seconds ("+envVarTURNRESTTTLSeconds+")")
	fs.StringVar(&turnRESTUsernamePrefix, "turn-rest-username-prefix", turnRESTUsernamePrefix, "TURN REST username prefix ("+envVarTURNRESTUsernamePrefix+")")
	fs.StringVar(&turnRESTRealm, "turn-rest-realm", turnRESTRealm, "TURN realm (coturn config; "+envVarTURNRESTRealm+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	if !envLogFormatSet && !setFlags["log-format"] {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	if !envLogLevelSet && !setFlags["log-level"] {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}

	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	iceServers, err := parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential)
	if err != nil {
		return Config{}, err
	}

	if listenAddr == "" {
		return Config{}, fmt.Errorf("listen address must not be empty")
	}
	if (tlsCertFile == "") != (tlsKeyFile == "") {
		return Config{}, fmt.Errorf("%s and %s must be set together (or both unset)", envVarTLSCertFile, envVarTLSKeyFile)
	}
	if strings.TrimSpace(dbPath) == "" {
		return Config{}, fmt.Errorf("%s/--db-path must not be empty", envVarDBPath)
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("shutdown timeout must be > 0")
	}
	if revealWindow <= 0 {
		return Config{}, fmt.Errorf("%s/--reveal-window must be > 0", envVarRevealWindow)
	}
	if revealMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("%s/--reveal-max-attempts must be > 0", envVarRevealMaxAttempts)
	}
	if heartbeatInterval <= 0 {
		return Config{}, fmt.Errorf("%s/--heartbeat-interval must be > 0", envVarHeartbeatInterval)
	}
	if maxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-message-bytes must be > 0", envVarMaxMessageBytes)
	}
	if maxMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("%s/--max-messages-per-second must be > 0", envVarMaxMessagesPerSecond)
	}
	if sendQueueLength <= 0 {
		return Config{}, fmt.Errorf("%s/--send-queue-length must be > 0", envVarSendQueueLength)
	}
	if turnRESTSharedSecret != "" && turnRESTTTLSeconds <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0 when %s is set", envVarTURNRESTTTLSeconds, envVarTURNRESTSharedSecret)
	}

	return Config{
		ListenAddr:  listenAddr,
		TLSCertFile: tlsCertFile,
		TLSKeyFile:  tlsKeyFile,
		DBPath:      dbPath,

		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: shutdownTimeout,

		RevealToken:       revealToken,
		RevealWindow:      revealWindow,
		RevealMaxAttempts: revealMaxAttempts,

		HeartbeatInterval:    heartbeatInterval,
		MaxMessageBytes:      maxMessageBytes,
		MaxMessagesPerSecond: maxMessagesPerSecond,
		SendQueueLength:      sendQueueLength,

		ICEServers: iceServers,
		TURNREST: TurnRESTConfig{
			SharedSecret:   turnRESTSharedSecret,
			TTLSeconds:     turnRESTTTLSeconds,
			UsernamePrefix: turnRESTUsernamePrefix,
			Realm:          turnRESTRealm,
		},
	}, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("unsupported mode %q (want dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported log format %q (want text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", raw)
	}
}
