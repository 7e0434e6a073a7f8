// Command avrocat converts a stream of Avro values between the binary and JSON
// encodings, optionally resolving them into a reader schema on the way.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oy3o/avro"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	formatBinary = "binary"
	formatJSON   = "json"
)

type config struct {
	Schema       string
	ReaderSchema string
	From         string
	To           string
	In           string
	Out          string
	LogLevel     string
	MaxDepth     int
	MaxItems     int
}

func (c *config) load(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Schema, "schema", "s", getEnv("AVROCAT_SCHEMA", ""), "writer schema file")
	fs.StringVarP(&c.ReaderSchema, "reader-schema", "r", getEnv("AVROCAT_READER_SCHEMA", ""), "reader schema file, defaults to the writer schema")
	fs.StringVar(&c.From, "from", getEnv("AVROCAT_FROM", formatBinary), "input encoding: binary or json")
	fs.StringVar(&c.To, "to", getEnv("AVROCAT_TO", formatJSON), "output encoding: binary or json")
	fs.StringVarP(&c.In, "in", "i", getEnv("AVROCAT_IN", "-"), "input file, - for stdin")
	fs.StringVarP(&c.Out, "out", "o", getEnv("AVROCAT_OUT", "-"), "output file, - for stdout")
	fs.StringVar(&c.LogLevel, "log-level", getEnv("AVROCAT_LOG_LEVEL", "info"), "log level: debug, info, warning or error")
	fs.IntVar(&c.MaxDepth, "max-depth", avro.DefaultMaxDepth, "maximum nesting depth of values")
	fs.IntVar(&c.MaxItems, "max-items", avro.DefaultMaxItems, "maximum elements of one binary array or map")
}

func (c *config) validate() error {
	if c.Schema == "" {
		return errors.New("--schema is required")
	}
	for _, f := range []string{c.From, c.To} {
		if f != formatBinary && f != formatJSON {
			return fmt.Errorf("unknown encoding %q", f)
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newLogger(level string, out zapcore.WriteSyncer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	logLevel := zap.InfoLevel
	switch level {
	case "debug":
		logLevel = zap.DebugLevel
	case "warning":
		logLevel = zap.WarnLevel
	case "error":
		logLevel = zap.ErrorLevel
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), out, zap.NewAtomicLevelAt(logLevel))
	return zap.New(core, zap.Fields(zap.Int("pid", os.Getpid())))
}

func main() {
	cfg := config{}
	fs := pflag.NewFlagSet("avrocat", pflag.ExitOnError)
	cfg.load(fs)
	_ = fs.Parse(os.Args[1:])

	logger := newLogger(cfg.LogLevel, zapcore.Lock(os.Stderr))
	defer func() { _ = logger.Sync() }()

	if err := cfg.validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		os.Exit(2)
	}

	in, out := io.Reader(os.Stdin), io.Writer(os.Stdout)
	if cfg.In != "-" {
		f, err := os.Open(cfg.In)
		if err != nil {
			logger.Fatal("open input", zap.Error(err))
		}
		defer f.Close()
		in = f
	}
	if cfg.Out != "-" {
		f, err := os.Create(cfg.Out)
		if err != nil {
			logger.Fatal("create output", zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	n, err := run(cfg, in, out, logger)
	if err != nil {
		logger.Error("conversion failed", zap.Int("values", n), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("conversion done", zap.Int("values", n))
}

func loadSchema(path string) (*avro.Schema, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return avro.ParseBytes(text)
}

// run converts every value of in and returns how many were written.
func run(cfg config, in io.Reader, out io.Writer, logger *zap.Logger) (int, error) {
	writer, err := loadSchema(cfg.Schema)
	if err != nil {
		return 0, fmt.Errorf("writer schema: %w", err)
	}
	var reader *avro.Schema
	if cfg.ReaderSchema != "" {
		if reader, err = loadSchema(cfg.ReaderSchema); err != nil {
			return 0, fmt.Errorf("reader schema: %w", err)
		}
	}

	decodeCodec, err := avro.NewCodec(writer, reader, avro.WithMaxDepth(cfg.MaxDepth), avro.WithMaxItems(cfg.MaxItems))
	if err != nil {
		return 0, err
	}
	encodeCodec, err := avro.NewCodec(decodeCodec.Reader(), nil, avro.WithMaxDepth(cfg.MaxDepth))
	if err != nil {
		return 0, err
	}
	logger.Debug("schemas loaded",
		zap.String("writer", writer.String()),
		zap.String("reader", decodeCodec.Reader().String()))

	bw := bufio.NewWriter(out)
	var dec avro.ValueDecoder
	var enc avro.ValueEncoder
	if cfg.From == formatJSON {
		dec = decodeCodec.NewJSONDecoder(in)
	} else {
		dec = decodeCodec.NewDecoder(bufio.NewReader(in))
	}
	if cfg.To == formatJSON {
		enc = encodeCodec.NewJSONEncoder(bw)
	} else {
		enc = encodeCodec.NewEncoder(bw)
	}

	n := 0
	for {
		v, err := dec.Decode()
		if errors.Is(err, io.EOF) && !errors.Is(err, avro.ErrStreamTruncated) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("value %d: %w", n, err)
		}
		if err := enc.Encode(v); err != nil {
			return n, fmt.Errorf("value %d: %w", n, err)
		}
		n++
		logger.Debug("value converted", zap.Int("index", n-1), zap.Stringer("value", v))
	}
	return n, bw.Flush()
}
