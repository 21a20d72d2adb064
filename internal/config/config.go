package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"shopflow/internal/infrastructure/database"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

func (c DBConfig) Database() database.DBConfig {
	return database.DBConfig{
		Host:            c.Host,
		Port:            fmt.Sprintf("%d", c.Port),
		User:            c.User,
		Password:        c.Password,
		DBName:          c.Name,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func (c DBConfig) GetDBConnectionString() string {
	return c.Database().DSN()
}

func (c DBConfig) GetDBMigrationConnectionString() string {
	return c.Database().MigrationURL()
}

type KafkaConfig struct {
	BrokerURL         string
	Partitions        int
	ReplicationFactor int
}

func (c KafkaConfig) GetKafkaBrokers() []string {
	parts := strings.Split(c.BrokerURL, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type LogConfig struct {
	Level  string
	Format string
}

type OutboxConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
	MaxAttempts  int
}

type loader struct {
	v    *viper.Viper
	errs []string
}

// newLoader reads an optional .env file into the process environment and
// then resolves every key from the environment with the given defaults.
func newLoader(defaults map[string]any) *loader {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return &loader{v: v}
}

func (l *loader) str(key string) string { return l.v.GetString(key) }

func (l *loader) boolean(key string) bool { return l.v.GetBool(key) }

func (l *loader) float(key string) float64 { return l.v.GetFloat64(key) }

func (l *loader) integer(key string) int {
	raw := l.v.GetString(key)
	n := l.v.GetInt(key)
	if raw != "" && n == 0 && raw != "0" {
		l.errs = append(l.errs, fmt.Sprintf("invalid %s: %q is not an integer", key, raw))
	}
	return n
}

func (l *loader) duration(key string) time.Duration {
	raw := l.v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid %s: %v", key, err))
		return 0
	}
	return d
}

func (l *loader) list(key string) []string {
	var out []string
	for _, s := range strings.Split(l.v.GetString(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (l *loader) err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(l.errs, "; "))
}

func (l *loader) http(prefix string) HTTPConfig {
	return HTTPConfig{
		Port:            l.integer(prefix + "_HTTP_PORT"),
		ReadTimeout:     l.duration("HTTP_READ_TIMEOUT"),
		WriteTimeout:    l.duration("HTTP_WRITE_TIMEOUT"),
		ShutdownTimeout: l.duration("HTTP_SHUTDOWN_TIMEOUT"),
	}
}

func (l *loader) log() LogConfig {
	return LogConfig{Level: l.str("LOG_LEVEL"), Format: l.str("LOG_FORMAT")}
}

func (l *loader) db(prefix string) DBConfig {
	return DBConfig{
		Host:         l.str(prefix + "_DB_HOST"),
		Port:         l.integer(prefix + "_DB_PORT"),
		User:         l.str(prefix + "_DB_USER"),
		Password:     l.str(prefix + "_DB_PASSWORD"),
		Name:         l.str(prefix + "_DB_NAME"),
		SSLMode:      l.str(prefix + "_DB_SSLMODE"),
		MaxOpenConns: l.integer("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: l.integer("DB_MAX_IDLE_CONNS"),
	}
}

func (l *loader) kafka() KafkaConfig {
	return KafkaConfig{
		BrokerURL:         l.str("KAFKA_BROKER_URL"),
		Partitions:        l.integer("KAFKA_TOPIC_PARTITIONS"),
		ReplicationFactor: l.integer("KAFKA_TOPIC_REPLICATION_FACTOR"),
	}
}

func (l *loader) outbox() OutboxConfig {
	return OutboxConfig{
		PollInterval: l.duration("OUTBOX_POLL_INTERVAL"),
		PollTimeout:  l.duration("OUTBOX_POLL_TIMEOUT"),
		BatchSize:    l.integer("OUTBOX_BATCH_SIZE"),
		MaxAttempts:  l.integer("OUTBOX_MAX_ATTEMPTS"),
	}
}

func commonDefaults(prefix string, port int, dbName string) map[string]any {
	return map[string]any{
		"LOG_LEVEL":                      "info",
		"LOG_FORMAT":                     "json",
		prefix + "_HTTP_PORT":            port,
		"HTTP_READ_TIMEOUT":              "10s",
		"HTTP_WRITE_TIMEOUT":             "30s",
		"HTTP_SHUTDOWN_TIMEOUT":          "15s",
		prefix + "_DB_HOST":              "localhost",
		prefix + "_DB_PORT":              5432,
		prefix + "_DB_USER":              "user",
		prefix + "_DB_PASSWORD":          "password",
		prefix + "_DB_NAME":              dbName,
		prefix + "_DB_SSLMODE":           "disable",
		"DB_MAX_OPEN_CONNS":              20,
		"DB_MAX_IDLE_CONNS":              5,
		"KAFKA_BROKER_URL":               "localhost:9092",
		"KAFKA_TOPIC_PARTITIONS":         3,
		"KAFKA_TOPIC_REPLICATION_FACTOR": 1,
		"OUTBOX_POLL_INTERVAL":           "1s",
		"OUTBOX_POLL_TIMEOUT":            "500ms",
		"OUTBOX_BATCH_SIZE":              50,
		"OUTBOX_MAX_ATTEMPTS":            10,
	}
}

func merge(dst map[string]any, src map[string]any) map[string]any {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
