// Package app はアプリケーションのメインロジックを実装します
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/shiroemons/go-xp3/internal/xp3tool/config"
	"github.com/shiroemons/go-xp3/internal/xp3tool/fileutil"
	"github.com/shiroemons/go-xp3/internal/xp3tool/interfaces"
	"github.com/shiroemons/go-xp3/pkg/crypto"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// App はアプリケーションのメインロジックを管理します
type App struct {
	config *config.Config
	logger interfaces.Logger
	slog   *slog.Logger
	fs     interfaces.FileSystem
	finder interfaces.ArchiveFinder
	titles xp3.Titles

	stdout io.Writer
	stderr io.Writer
	mu     sync.Mutex // 進捗出力用
}

// Options はAppの設定オプション
type Options struct {
	FileSystem    interfaces.FileSystem
	ArchiveFinder interfaces.ArchiveFinder
	Titles        xp3.Titles
	Stdout        io.Writer
	Stderr        io.Writer
}

// New は新しいAppを作成します
func New(cfg *config.Config) *App {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions は新しいAppをオプション付きで作成します
func NewWithOptions(cfg *config.Config, opts Options) *App {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// デフォルトのファイルシステムを設定
	fs := opts.FileSystem
	if fs == nil {
		fs = fileutil.NewOSFileSystem()
	}

	finder := opts.ArchiveFinder
	if finder == nil {
		finder = fileutil.NewArchiveFinderWithFS(fs)
	}

	titles := opts.Titles
	if titles == nil {
		titles = xp3.DefaultTitles()
	}

	level := slog.LevelWarn
	switch {
	case cfg.DebugMode:
		level = slog.LevelDebug
	case cfg.Silent:
		level = slog.LevelError
	}

	return &App{
		config: cfg,
		logger: config.NewDebugLoggerTo(cfg.DebugMode, stdout),
		slog:   slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		fs:     fs,
		finder: finder,
		titles: titles,
		stdout: stdout,
		stderr: stderr,
	}
}

// Run はアプリケーションを実行します
func (a *App) Run(ctx context.Context) error {
	title, opts, err := a.setup()
	if err != nil {
		return err
	}
	a.logger.Printf("モード: %s, 暗号化: %s\n", a.config.Mode, title.Name)

	switch a.config.Mode {
	case config.ModeRepack:
		return a.repack(ctx, title, opts)
	case config.ModeList:
		return a.list(opts)
	default:
		return a.extract(ctx, title, opts)
	}
}

// setup は設定ファイルを読み込み、タイトルとアーカイブのオプションを決定します
func (a *App) setup() (xp3.Title, []xp3.Option, error) {
	titles := maps.Clone(a.titles)
	opts := []xp3.Option{
		xp3.WithLogger(a.slog),
		xp3.WithWorkers(a.config.WorkerCount()),
		xp3.WithInclude(a.config.Include...),
		xp3.WithSink(a.fs),
	}

	if a.config.ConfigPath != "" {
		fc, err := config.LoadFile(a.fs, a.config.ConfigPath)
		if err != nil {
			return xp3.Title{}, nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
		if err := fc.ApplyTitles(titles); err != nil {
			return xp3.Title{}, nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
		decode, err := fileutil.Decoder(fc.NameEncoding)
		if err != nil {
			return xp3.Title{}, nil, fmt.Errorf("%w: name_encoding %q: %w", ErrLoadConfig, fc.NameEncoding, err)
		}
		dict, err := fc.Dictionary(a.fs, decode)
		if err != nil {
			return xp3.Title{}, nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
		a.logger.Printf("設定ファイル %s を読み込みました（タイトル %d 件、既知のファイル名 %d 件）\n",
			a.config.ConfigPath, len(fc.Titles), len(dict))
		opts = append(opts, xp3.WithDictionary(dict), xp3.WithSpecialTags(fc.SpecialTags()...))
	}

	title, err := titles.Lookup(a.config.Encryption)
	if err != nil {
		return xp3.Title{}, nil, fmt.Errorf("%w: %w", ErrUnknownTitle, err)
	}
	return title, opts, nil
}

// extract は入力のアーカイブ（ディレクトリの場合はその中の.xp3すべて）を展開します
func (a *App) extract(ctx context.Context, title xp3.Title, opts []xp3.Option) error {
	info, err := a.fs.Stat(a.config.Input)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotFound, a.config.Input)
	}
	if !info.IsDir() {
		return a.extractArchive(ctx, a.config.Input, a.config.Output, title, opts)
	}

	archives, err := a.finder.Find(a.config.Input)
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := fileutil.ArchiveOutputDir(a.config.Output, path)
		if a.config.DumpIndex {
			dest += ".index"
		}
		if err := a.extractArchive(ctx, path, dest, title, opts); err != nil {
			fmt.Fprintf(a.stderr, "エラー: %s: %v\n", path, err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(archives) {
		return errors.Join(errs...)
	}
	return nil
}

func (a *App) extractArchive(ctx context.Context, path, dest string, title xp3.Title, opts []xp3.Option) error {
	a.logger.Printf("アーカイブファイル %s を開きます...\n", path)
	archive, err := xp3.Open(path, opts...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpenArchive, path, err)
	}
	defer archive.Close()

	if a.config.DumpIndex {
		return a.dumpIndex(archive, dest)
	}

	if !a.config.Silent {
		a.printf(a.stdout, "Extracting %s\n", path)
	}
	report, err := archive.ExtractAll(ctx, dest, xp3.ExtractOptions{
		ReadOptions: xp3.ReadOptions{Crypter: title.NewCrypter(crypto.BulkXOR)},
		Progress:    a.progress,
	})
	if err != nil {
		return err
	}

	for _, f := range report.Failures {
		a.printf(a.stderr, "! Problem writing %v\n", f)
	}
	if len(report.Mismatched) > 0 {
		a.printf(a.stderr, "警告: %d 個のファイルでチェックサムが一致しませんでした\n", len(report.Mismatched))
	}
	a.printf(a.stdout, "\n%d 個のファイルを抽出しました\n", report.Extracted)

	if report.Extracted == 0 && len(report.Failures) > 0 {
		return ErrNothingExtracted
	}
	return nil
}

func (a *App) dumpIndex(archive *xp3.Archive, dest string) error {
	index, err := archive.IndexBytes()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := a.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteIndex, err)
		}
	}
	if err := a.fs.WriteFile(dest, index, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteIndex, err)
	}
	a.printf(a.stdout, "インデックスを %s に書き出しました (%d バイト)\n", dest, len(index))
	return nil
}

// progress は展開中のファイルを表示します
func (a *App) progress(e *xp3.FileEntry, path string) {
	a.printf(a.stdout, "| Extracting %s (%d -> %d bytes)\n", path, e.GetCompressedSize(), e.GetOriginalSize())
}

// printf は silent でない場合のみ出力します
func (a *App) printf(w io.Writer, format string, args ...any) {
	if a.config.Silent {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(w, format, args...)
}

// repack は入力ディレクトリからアーカイブを作成します
func (a *App) repack(ctx context.Context, title xp3.Title, opts []xp3.Option) error {
	if !a.fs.FileExists(a.config.Input) {
		return fmt.Errorf("%w: %s", ErrInputNotFound, a.config.Input)
	}

	opts = append(opts, xp3.WithTitle(title), xp3.WithCompression(a.config.Compress))
	archive, err := xp3.Create(a.config.Output, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateArchive, err)
	}

	a.printf(a.stdout, "Packing %s\n", a.config.Input)
	entries, err := archive.AddFolder(ctx, a.config.Input, a.config.Flatten, a.config.Timestamps)
	if err != nil {
		archive.Close()
		return fmt.Errorf("%w: %w", ErrCreateArchive, err)
	}
	if err := archive.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateArchive, err)
	}
	a.printf(a.stdout, "%d 個のファイルを %s に書き込みました\n", len(entries), a.config.Output)
	return nil
}

// list はアーカイブ内のファイル一覧を表示します
func (a *App) list(opts []xp3.Option) error {
	archive, err := xp3.Open(a.config.Input, opts...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpenArchive, a.config.Input, err)
	}
	defer archive.Close()
	r, err := archive.Reader()
	if err != nil {
		return err
	}
	listArchive(a.stdout, r)
	return nil
}

// listArchive はアーカイブのリストを表示します
func listArchive(w io.Writer, r *xp3.Reader) {
	fmt.Fprintln(w, "アーカイブ内のファイル一覧:")
	fmt.Fprintln(w, "----------------------------")
	fmt.Fprintf(w, "%-32s %10s %10s %s\n", "ファイル名", "元サイズ", "圧縮サイズ", "属性")
	fmt.Fprintln(w, "----------------------------")

	if r.Len() == 0 {
		fmt.Fprintln(w, "ファイルがありません")
		return
	}

	for _, e := range r.Entries() {
		var flags string
		if e.IsCompressed() {
			flags += "z"
		}
		if e.IsEncrypted() {
			flags += "e"
		}
		fmt.Fprintf(w, "%-32s %10d %10d %s\n",
			r.DisplayPath(e),
			e.GetOriginalSize(),
			e.GetCompressedSize(),
			flags)
	}
	fmt.Fprintln(w, "----------------------------")
}
