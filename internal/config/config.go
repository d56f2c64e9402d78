package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/livp123/pktstream/internal/utils/logger"
	pkgerrors "github.com/livp123/pktstream/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultConfigTemplate is written by `pktstream init`.
// DefaultConfigTemplate 由 `pktstream init` 写入。
const DefaultConfigTemplate = `# pktstream configuration / pktstream 配置文件

# HTTP / websocket server / HTTP 与 websocket 服务
server:
  listen: ":8000"
  read_timeout: "10s"
  write_timeout: "10s"

# External capture producer / 外部抓包程序
# {duration} and {output} are replaced per session.
# 每次会话替换 {duration} 与 {output}。
producer:
  path: "./packet_capture"
  args: ["-t", "{duration}", "-o", "{output}"]
  output: "capture.txt"

# Capture session timing / 抓包会话时序
capture:
  default_duration: 30
  max_duration: 3600
  poll_interval: "500ms"
  grace_period: "1s"
  drain_buffer: "2s"
  # Report remaining time every N seconds, and every second during the final countdown.
  # 每 N 秒报告剩余时间，最后倒计时阶段每秒报告。
  status_every: 5
  final_countdown: 5
  top_n: 10
  max_line_bytes: 65536
  # Optional expr filter, e.g. Protocol == "6" && SrcIP startsWith "10."
  # 可选的 expr 过滤表达式。
  filter: ""
  watch_fs: true

# Live viewers / 实时查看者
viewers:
  queue_size: 256
  write_timeout: "5s"

# Mirror every event to NATS / 将事件同步发布到 NATS
nats:
  enabled: false
  url: "nats://127.0.0.1:4222"
  subject: "pktstream.events"

metrics:
  enabled: true
  path: "/metrics"

logging:
  level: "info"
  path: ""
  max_size: 10
  max_backups: 3
  max_age: 30
  compress: true
`

// Config is the top-level configuration.
// Config 是顶层配置。
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Producer ProducerConfig       `yaml:"producer"`
	Capture  CaptureConfig        `yaml:"capture"`
	Viewers  ViewersConfig        `yaml:"viewers"`
	NATS     NATSConfig           `yaml:"nats"`
	Metrics  MetricsConfig        `yaml:"metrics"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Listen       string   `yaml:"listen"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

type ProducerConfig struct {
	Path   string   `yaml:"path"`
	Args   []string `yaml:"args"`
	Output string   `yaml:"output"`
}

type CaptureConfig struct {
	DefaultDuration int      `yaml:"default_duration"`
	MaxDuration     int      `yaml:"max_duration"`
	PollInterval    Duration `yaml:"poll_interval"`
	GracePeriod     Duration `yaml:"grace_period"`
	DrainBuffer     Duration `yaml:"drain_buffer"`
	StatusEvery     int      `yaml:"status_every"`
	FinalCountdown  int      `yaml:"final_countdown"`
	TopN            int      `yaml:"top_n"`
	MaxLineBytes    int      `yaml:"max_line_bytes"`
	Filter          string   `yaml:"filter"`
	WatchFS         bool     `yaml:"watch_fs"`
}

type ViewersConfig struct {
	QueueSize    int      `yaml:"queue_size"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Duration is a time.Duration that reads Go duration strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration, matching DefaultConfigTemplate.
// Default 返回内置默认配置，与 DefaultConfigTemplate 一致。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:       ":8000",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(10 * time.Second),
		},
		Producer: ProducerConfig{
			Path:   "./packet_capture",
			Args:   []string{"-t", PlaceholderDuration, "-o", PlaceholderOutput},
			Output: "capture.txt",
		},
		Capture: CaptureConfig{
			DefaultDuration: 30,
			MaxDuration:     3600,
			PollInterval:    Duration(500 * time.Millisecond),
			GracePeriod:     Duration(time.Second),
			DrainBuffer:     Duration(2 * time.Second),
			StatusEvery:     5,
			FinalCountdown:  5,
			TopN:            10,
			MaxLineBytes:    64 * 1024,
			WatchFS:         true,
		},
		Viewers: ViewersConfig{
			QueueSize:    256,
			WriteTimeout: Duration(5 * time.Second),
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "pktstream.events",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: logger.LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// Load 在默认值之上读取 YAML 文件并进行验证。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges. Filter compilation is checked by the capture package.
// Validate 检查取值范围。
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return pkgerrors.NewConfigError("server.listen", c.Server.Listen)
	}
	if c.Producer.Path == "" {
		return pkgerrors.NewConfigError("producer.path", c.Producer.Path)
	}
	if c.Producer.Output == "" {
		return pkgerrors.NewConfigError("producer.output", c.Producer.Output)
	}
	if c.Capture.MaxDuration <= 0 {
		return pkgerrors.NewConfigError("capture.max_duration", c.Capture.MaxDuration)
	}
	if c.Capture.DefaultDuration <= 0 || c.Capture.DefaultDuration > c.Capture.MaxDuration {
		return pkgerrors.NewConfigError("capture.default_duration", c.Capture.DefaultDuration)
	}

	positive := []struct {
		field string
		value time.Duration
	}{
		{"capture.poll_interval", c.Capture.PollInterval.Std()},
		{"viewers.write_timeout", c.Viewers.WriteTimeout.Std()},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return pkgerrors.NewConfigError(p.field, p.value)
		}
	}
	if c.Capture.GracePeriod < 0 {
		return pkgerrors.NewConfigError("capture.grace_period", c.Capture.GracePeriod.Std())
	}
	if c.Capture.DrainBuffer < 0 {
		return pkgerrors.NewConfigError("capture.drain_buffer", c.Capture.DrainBuffer.Std())
	}
	if c.Capture.StatusEvery <= 0 {
		return pkgerrors.NewConfigError("capture.status_every", c.Capture.StatusEvery)
	}
	if c.Capture.FinalCountdown < 0 {
		return pkgerrors.NewConfigError("capture.final_countdown", c.Capture.FinalCountdown)
	}
	if c.Capture.TopN <= 0 {
		return pkgerrors.NewConfigError("capture.top_n", c.Capture.TopN)
	}
	if c.Capture.MaxLineBytes <= 0 {
		return pkgerrors.NewConfigError("capture.max_line_bytes", c.Capture.MaxLineBytes)
	}
	if c.Viewers.QueueSize <= 0 {
		return pkgerrors.NewConfigError("viewers.queue_size", c.Viewers.QueueSize)
	}
	if c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.Subject == "") {
		return pkgerrors.NewConfigError("nats", c.NATS.URL+" "+c.NATS.Subject)
	}
	return nil
}
