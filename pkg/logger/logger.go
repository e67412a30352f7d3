package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger *zerolog.Logger

var logFile *os.File

// 日志文件名中的时间格式
const fileTimeFormat = "2006-01-02T15-04-05.0000"

// Init 初始化 zerolog 日志
// level: 日志级别 ("trace", "debug", "info", "warn", "error")
// file: 日志文件路径，为空时仅输出到控制台
func Init(level string, file string) error {
	return InitWithConsole(level, file, os.Stdout)
}

// InitWithConsole 与 Init 相同，但控制台输出写到 out
// out 为 nil 时不输出到控制台，例如进度界面占用终端时
func InitWithConsole(level string, file string, out io.Writer) error {
	// 配置输出
	var console io.Writer = io.Discard
	if out != nil {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}
	output := console

	var fileWriter *os.File
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return err
		}
		// 文件中保留 JSON 格式，控制台使用友好格式
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		fileWriter = f
		output = zerolog.MultiLevelWriter(console, fileWriter)
	}

	Close()
	logFile = fileWriter

	// 设置全局 logger
	logger := zerolog.New(output).With().Timestamp().Logger().Level(ParseLevel(level))
	log.Logger = logger

	Logger = &logger
	return nil
}

// Close 关闭日志文件
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ParseLevel 解析日志级别，无法识别时返回 info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// FileName 返回日志目录下本次运行的日志文件路径
func FileName(logsDir string, now time.Time) string {
	return filepath.Join(logsDir, "SokkaCorp-"+now.Format(fileTimeFormat)+".log")
}

// Get 返回全局 logger 实例
// 如果 logger 未初始化，返回一个默认的 logger（输出到 /dev/null）
func Get() *zerolog.Logger {
	if Logger == nil {
		logger := zerolog.New(io.Discard)
		Logger = &logger
	}
	return Logger
}

// Progress 输出进度信息
func Progress(current, total int, message string) {
	if total > 0 {
		percentage := float64(current) / float64(total) * 100
		Get().Info().
			Int("current", current).
			Int("total", total).
			Float64("percentage", percentage).
			Msg(message)
	} else {
		Get().Info().
			Int("current", current).
			Msg(message)
	}
}
