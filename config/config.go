package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
)

// 环境变量前缀，例如 REORGANIZER_LOGGING_LEVEL
const EnvPrefix = "REORGANIZER"

const DefaultOutputDir = "~/Documents"

type Config struct {
	Paths struct {
		Source   string
		Output   string
		RootName string `mapstructure:"root_name"`
	}
	Index struct {
		File   string
		Digest string
	}
	Archive struct {
		MaxDepth             int   `mapstructure:"max_depth"`
		MaxUncompressedBytes int64 `mapstructure:"max_uncompressed_bytes"`
	}
	Organize struct {
		Mode              string
		ExcludeDuplicates bool   `mapstructure:"exclude_duplicates"`
		WorkingCopy       string `mapstructure:"working_copy"`
		SniffContent      bool   `mapstructure:"sniff_content"`
	}
	Performance struct {
		Workers int
	}
	Logging struct {
		Level string
		File  string
	}
	History struct {
		Enabled bool
		Path    string
	}
}

// 命令行参数与配置项的对应关系
var flagKeys = map[string]string{
	"source":             "paths.source",
	"output":             "paths.output",
	"root-name":          "paths.root_name",
	"index-file":         "index.file",
	"max-depth":          "archive.max_depth",
	"mode":               "organize.mode",
	"exclude-duplicates": "organize.exclude_duplicates",
	"working-copy":       "organize.working_copy",
	"workers":            "performance.workers",
	"log-level":          "logging.level",
	"log-file":           "logging.file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.source", "")
	v.SetDefault("paths.output", DefaultOutputDir)
	v.SetDefault("paths.root_name", internal.DefaultRootName)
	v.SetDefault("index.file", "")
	v.SetDefault("index.digest", internal.DigestAlgorithm)
	v.SetDefault("archive.max_depth", internal.DefaultMaxZipDepth)
	v.SetDefault("archive.max_uncompressed_bytes", internal.DefaultMaxUncompressedBytes)
	v.SetDefault("organize.mode", string(internal.ModeCopy))
	v.SetDefault("organize.exclude_duplicates", false)
	v.SetDefault("organize.working_copy", string(internal.WorkingCopyAuto))
	v.SetDefault("organize.sniff_content", true)
	v.SetDefault("performance.workers", internal.DefaultWorkers)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
}

// Load 读取配置，优先级: 命令行参数 > 环境变量 > 配置文件 > 默认值
// path 为空时在默认位置查找 config.yaml，找不到不算错误
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		expanded, err := internal.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.file-reorganizer")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/file-reorganizer")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("绑定参数 %s 失败: %w", name, err)
			}
		}
		if f := flags.Lookup("no-history"); f != nil && f.Changed {
			v.Set("history.enabled", false)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.Paths.Source, &c.Paths.Output, &c.Index.File, &c.Logging.File, &c.History.Path} {
		expanded, err := internal.ExpandPath(*p)
		if err != nil {
			return fmt.Errorf("展开路径 %s 失败: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	var errs []error

	switch internal.OperationMode(c.Organize.Mode) {
	case internal.ModeCopy, internal.ModeMove:
	default:
		errs = append(errs, fmt.Errorf("未知的操作模式: %q (可选 copy, move)", c.Organize.Mode))
	}

	switch internal.WorkingCopyPolicy(c.Organize.WorkingCopy) {
	case internal.WorkingCopyAuto, internal.WorkingCopyAlways, internal.WorkingCopyNever:
	default:
		errs = append(errs, fmt.Errorf("未知的工作副本策略: %q (可选 auto, always, never)", c.Organize.WorkingCopy))
	}

	if c.Archive.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("archive.max_depth 必须大于 0"))
	}
	if c.Archive.MaxUncompressedBytes <= 0 {
		errs = append(errs, fmt.Errorf("archive.max_uncompressed_bytes 必须大于 0"))
	}
	if c.Performance.Workers <= 0 {
		errs = append(errs, fmt.Errorf("performance.workers 必须大于 0"))
	}
	if !strings.EqualFold(c.Index.Digest, internal.DigestAlgorithm) {
		errs = append(errs, fmt.Errorf("不支持的摘要算法: %q (仅支持 %s)", c.Index.Digest, internal.DigestAlgorithm))
	}
	if strings.ContainsAny(c.Paths.RootName, `/\`) || c.Paths.RootName == "" {
		errs = append(errs, fmt.Errorf("paths.root_name 不能为空或包含路径分隔符"))
	}

	return errors.Join(errs...)
}
