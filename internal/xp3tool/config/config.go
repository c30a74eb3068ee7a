// Package config はxp3コマンドの設定管理を行います
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/pflag"

	"github.com/shiroemons/go-xp3/pkg/xp3"
)

const Version = "0.1.0"

// Mode は実行モード
type Mode string

// Mode定数
const (
	ModeExtract Mode = "extract"
	ModeRepack  Mode = "repack"
	ModeList    Mode = "list"
)

var (
	// ErrUnknownMode は不明なモードが指定された場合のエラー
	ErrUnknownMode = errors.New("不明なモードです")

	// ErrMissingArgument は入力または出力が指定されていない場合のエラー
	ErrMissingArgument = errors.New("入力と出力を指定してください")
)

// ParseMode は短縮形を含むモード名を解釈します
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "e", "extract":
		return ModeExtract, nil
	case "r", "repack":
		return ModeRepack, nil
	case "l", "list":
		return ModeList, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMode, s)
}

// Config はアプリケーションの設定を保持します
type Config struct {
	Mode       Mode
	Input      string
	Output     string
	DumpIndex  bool
	Encryption string
	Silent     bool
	Compress   bool
	Flatten    bool
	Timestamps bool
	Parallel   bool
	Workers    int
	Include    []string
	ConfigPath string
	DebugMode  bool

	ShowVersion bool
	ShowHelp    bool
}

// WorkerCount は実際に使うワーカー数を返します
func (c *Config) WorkerCount() int {
	if !c.Parallel {
		return 1
	}
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// NewFlagSet は Config に結び付けたフラグを作成します
func NewFlagSet(cfg *Config, mode *string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("xp3", pflag.ContinueOnError)
	flagSet.StringVarP(mode, "mode", "m", "e", "operation mode (e|extract, r|repack, l|list)")
	flagSet.BoolVarP(&cfg.DumpIndex, "dump-index", "i", false, "dump the file index of an archive")
	flagSet.StringVarP(&cfg.Encryption, "encryption", "e", xp3.TitleNone, "encryption title ("+strings.Join(xp3.DefaultTitles().Names(), ", ")+")")
	flagSet.BoolVarP(&cfg.Silent, "silent", "s", false, "suppress progress output")
	flagSet.BoolVarP(&cfg.Compress, "compress", "c", false, "compress files when packing")
	flagSet.BoolVarP(&cfg.Flatten, "flatten", "f", false, "ignore subdirectories and pack all files into the archive root")
	flagSet.BoolVarP(&cfg.Timestamps, "timestamps", "t", false, "save file modification times into the archive")
	flagSet.BoolVarP(&cfg.Parallel, "parallel", "p", false, "process files in parallel")
	flagSet.IntVarP(&cfg.Workers, "workers", "w", 4, "number of workers for parallel processing")
	flagSet.StringArrayVar(&cfg.Include, "include", nil, "only process paths matching this glob (repeatable, ** supported)")
	flagSet.StringVar(&cfg.ConfigPath, "config", "", "YAML file with extra titles and known file names")
	flagSet.BoolVarP(&cfg.DebugMode, "debug", "d", false, "enable debug output")
	flagSet.BoolVarP(&cfg.ShowVersion, "version", "v", false, "show version information")
	flagSet.BoolVarP(&cfg.ShowHelp, "help", "h", false, "show help")
	return flagSet
}

// ParseFlags はコマンドライン引数を解析して設定を返します
func ParseFlags(args []string, output io.Writer) (*Config, error) {
	cfg := &Config{}
	var mode string
	flagSet := NewFlagSet(cfg, &mode)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprintln(output, "Usage: xp3 [options] <input> <output>")
		fmt.Fprintln(output, "KiriKiri .XP3 archive repacking and extraction tool")
		fmt.Fprintln(output)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			cfg.ShowHelp = true
			return cfg, nil
		}
		return nil, err
	}
	if cfg.ShowHelp {
		flagSet.Usage()
		return cfg, nil
	}
	if cfg.ShowVersion {
		return cfg, nil
	}

	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	cfg.Mode = m

	rest := flagSet.Args()
	switch {
	case m == ModeList && len(rest) >= 1:
		cfg.Input = rest[0]
	case len(rest) >= 2:
		cfg.Input, cfg.Output = rest[0], rest[1]
	default:
		return nil, ErrMissingArgument
	}
	return cfg, nil
}

// HandleVersion はバージョン表示を処理します
func HandleVersion(showVersion bool) {
	if showVersion {
		fmt.Printf("xp3 version %s\n", Version)
		os.Exit(0)
	}
}

// DebugLogger はデバッグ出力を管理します
type DebugLogger struct {
	enabled bool
	out     io.Writer
}

// NewDebugLogger は新しいDebugLoggerを作成します
func NewDebugLogger(enabled bool) *DebugLogger {
	return &DebugLogger{enabled: enabled, out: os.Stdout}
}

// NewDebugLoggerTo は出力先を指定してDebugLoggerを作成します
func NewDebugLoggerTo(enabled bool, out io.Writer) *DebugLogger {
	return &DebugLogger{enabled: enabled, out: out}
}

// Printf はデバッグモードが有効な場合のみメッセージを表示します
func (d *DebugLogger) Printf(format string, a ...any) {
	if d.enabled {
		fmt.Fprintf(d.out, format, a...)
	}
}
