package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"synapse/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.Mutex
	writer io.Writer = os.Stdout
	file   *rollingFile
)

// Init configures the global zerolog logger. When cfg.File is set, logs go
// to stdout and to a size-capped file.
func Init(cfg config.LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		f, err := openRollingFile(cfg.File, cfg.MaxMB)
		if err != nil {
			return err
		}
		if file != nil {
			_ = file.Close()
		}
		file = f
		out = io.MultiWriter(os.Stdout, f)
	}
	writer = out

	var console io.Writer = out
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	writer = os.Stdout
	return err
}
