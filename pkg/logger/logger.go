package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wcag-monitor/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the logger of one process. Records go to <dir>/<service>.log,
// rotated by lumberjack; dev mode also prints to stdout and keeps the file
// human readable, other modes write JSON. The logger is also installed as
// zap's global for code without an injected logger.
func New(cfg *config.LoggerConfig, service string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	dev := strings.EqualFold(cfg.Mode, "dev")

	fileCore := zapcore.NewCore(fileEncoder(dev), fileWriter(cfg, service), level)
	core := fileCore
	if dev {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		core = zapcore.NewTee(
			zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level),
			fileCore,
		)
	}

	log := zap.New(core, zap.AddCaller()).With(zap.String("service", service))
	zap.ReplaceGlobals(log)
	return log, nil
}

func fileEncoder(dev bool) zapcore.Encoder {
	if !dev {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "time"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

func fileWriter(cfg *config.LoggerConfig, service string) zapcore.WriteSyncer {
	dir := cfg.Dir
	if dir == "" {
		dir = "log"
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, service+".log"),
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	})
}
