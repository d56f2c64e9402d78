package logger

// LoggingConfig defines the configuration for logging.
// LoggingConfig 定义日志配置。
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Level: debug, info, warn, error
	// Level: 日志级别
	Path string `yaml:"path"`
	// Path: empty means stdout only
	// Path: 为空时仅输出到 stdout
	MaxSize    int  `yaml:"max_size"`    // MB before rotation / 轮转前的最大大小（MB）
	MaxBackups int  `yaml:"max_backups"` // rotated files kept / 保留的旧文件数量
	MaxAge     int  `yaml:"max_age"`     // days / 保留天数
	Compress   bool `yaml:"compress"`
}
