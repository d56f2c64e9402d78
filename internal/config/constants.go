package config

const (
	// DefaultConfigPath is the standard location for the pktstream configuration file.
	// DefaultConfigPath 是 pktstream 配置文件的标准位置。
	DefaultConfigPath = "/etc/pktstream/config.yaml"

	// Placeholders substituted into producer.args.
	// producer.args 中替换的占位符。
	PlaceholderDuration = "{duration}"
	PlaceholderOutput   = "{output}"
)
