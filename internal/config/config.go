// Package config loads physbridge.cfg.json through viper and exposes
// typed views of its sections.
package config

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "physbridge.cfg.json"

// PhysicsConfig seeds the Init command and the adapter defaults.
type PhysicsConfig struct {
	FixedTimeStep float64
	ReportSize    int
	ReportChunk   int
	Broadphase    string
	AabbMin       mgl64.Vec3
	AabbMax       mgl64.Vec3
	Gravity       mgl64.Vec3
	RateLimit     bool
	QueueSize     int
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

type SQLiteConfig struct {
	DumpPath     string
	DumpInterval time.Duration
}

type WebSocketConfig struct {
	URL    string
	Secret string
}

// DBConfig addresses the postgres server.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig selects and configures the session recorder.
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	WebSocket WebSocketConfig
	DB        DBConfig
}

type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

type InfluxConfig struct {
	Enabled    bool
	Host       string
	Port       string
	Protocol   string
	Token      string
	Org        string
	BackupPath string
}

// MonitorConfig controls the periodic status report.
type MonitorConfig struct {
	Enabled   bool
	Interval  time.Duration
	StatusDir string
}

type APIConfig struct {
	ServerURL string
	APIKey    string
}

// SetDefaults registers every default value. Load calls it.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("physics.fixedTimeStep", 1.0/60)
	viper.SetDefault("physics.reportSize", 50)
	viper.SetDefault("physics.reportChunk", 50)
	viper.SetDefault("physics.broadphase", "dynamic")
	viper.SetDefault("physics.aabbMin", []float64{0, 0, 0})
	viper.SetDefault("physics.aabbMax", []float64{0, 0, 0})
	viper.SetDefault("physics.gravity", []float64{0, -10, 0})
	viper.SetDefault("physics.rateLimit", true)
	viper.SetDefault("physics.queueSize", 1024)

	viper.SetDefault("api.serverUrl", "http://localhost:5000/api")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "physbridge")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "physbridge")
	viper.SetDefault("influx.backupPath", "./logs/influx_backup.log.gz")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusDir", ".")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/session.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "physbridge")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func GetString(key string) string {
	return viper.GetString(key)
}

func GetInt(key string) int {
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	return viper.GetBool(key)
}

// getVec3 reads a three element array; anything else yields the zero vector.
func getVec3(key string) mgl64.Vec3 {
	raw := viper.Get(key)
	var out mgl64.Vec3
	switch v := raw.(type) {
	case []float64:
		if len(v) == 3 {
			copy(out[:], v)
		}
	case []any:
		if len(v) == 3 {
			for i, x := range v {
				switch n := x.(type) {
				case float64:
					out[i] = n
				case int:
					out[i] = float64(n)
				}
			}
		}
	}
	return out
}

func GetPhysicsConfig() PhysicsConfig {
	return PhysicsConfig{
		FixedTimeStep: viper.GetFloat64("physics.fixedTimeStep"),
		ReportSize:    viper.GetInt("physics.reportSize"),
		ReportChunk:   viper.GetInt("physics.reportChunk"),
		Broadphase:    viper.GetString("physics.broadphase"),
		AabbMin:       getVec3("physics.aabbMin"),
		AabbMax:       getVec3("physics.aabbMax"),
		Gravity:       getVec3("physics.gravity"),
		RateLimit:     viper.GetBool("physics.rateLimit"),
		QueueSize:     viper.GetInt("physics.queueSize"),
	}
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:   viper.GetBool("monitor.enabled"),
		Interval:  viper.GetDuration("monitor.interval"),
		StatusDir: viper.GetString("monitor.statusDir"),
	}
}

func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
