package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/modboot/modboot/internal/config"
)

// InitLogger 根据配置初始化 JSON 结构化日志，确保文件/控制台输出一致。
func InitLogger(settings *config.Settings) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	output, outErr := buildOutput(settings)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   settings.LogFilePath,
		}).Warn(outErr.Error())
	}

	return logger, nil
}

// buildOutput 根据配置创建日志输出 Writer；失败时降级到 stdout 并返回错误。
func buildOutput(settings *config.Settings) (io.Writer, error) {
	if settings.LogFilePath == "" {
		return os.Stdout, nil
	}

	dir := filepath.Dir(settings.LogFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   settings.LogFilePath,
		MaxSize:    settings.LogMaxSize,
		MaxBackups: settings.LogMaxBackups,
		Compress:   settings.LogCompress,
		LocalTime:  true,
	}
	return rotator, nil
}
