package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Debug   *zap.SugaredLogger
	Scanner *zap.SugaredLogger
	Enabled bool
)

func init() {
	// Only enable logging if DISKPROBE_DEBUG environment variable is set
	if os.Getenv("DISKPROBE_DEBUG") == "" {
		Debug = zap.NewNop().Sugar()
		Scanner = zap.NewNop().Sugar()
		Enabled = false
		return
	}

	Enabled = true

	// Open debug.log once for all loggers
	var sink zapcore.WriteSyncer
	debugFile, err := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// Fallback to stderr if we can't open the file
		sink = zapcore.Lock(os.Stderr)
	} else {
		sink = zapcore.AddSync(debugFile)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, zapcore.DebugLevel)
	base := zap.New(core)

	// Named loggers sharing the same file
	Debug = base.Named("debug").Sugar()
	Scanner = base.Named("scanner").Sugar()
}

// NewConsole builds the logger used by CLI commands. Verbose raises the level to debug.
func NewConsole(verbose bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.DisableStacktrace = true
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// Sync flushes the package loggers.
func Sync() {
	_ = Debug.Sync()
	_ = Scanner.Sync()
}
