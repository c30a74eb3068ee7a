package xp3

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// Mode はアーカイブを開いた目的
type Mode int

// Mode定数
const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// Archive は読み込み用または書き込み用に開いたアーカイブ
type Archive struct {
	mode Mode
	path string
	opts options

	r    *Reader
	w    *Writer
	file *os.File
}

// ExtractOptions は ExtractAll の設定
type ExtractOptions struct {
	ReadOptions
	// Progress は各エントリの展開前に呼ばれます（並列に呼ばれることがあります）
	Progress func(e *FileEntry, path string)
}

// ExtractReport は ExtractAll の結果
type ExtractReport struct {
	Extracted int
	// Failures はエントリ単位の失敗 (*ArchiveError)
	Failures []error
	// Mismatched はチェックサムが一致しなかったエントリのパス
	Mismatched []string
}

// Open は path のアーカイブを読み込み用に開きます
func Open(path string, opts ...Option) (*Archive, error) {
	r, err := OpenReader(path, opts...)
	if err != nil {
		return nil, err
	}
	return &Archive{mode: ModeRead, path: path, opts: r.opts, r: r}, nil
}

// NewArchiveReader は Reader を読み込み用の Archive として扱います
func NewArchiveReader(r *Reader) *Archive {
	return &Archive{mode: ModeRead, opts: r.opts, r: r}
}

// Create は path に書き込み用のアーカイブを作成します。親ディレクトリがなければ作成します。
func Create(path string, opts ...Option) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Archive{mode: ModeWrite, path: path, opts: w.opts, w: w, file: f}, nil
}

// NewMemoryArchive はメモリ上に書き込むアーカイブを作成します
func NewMemoryArchive(opts ...Option) *Archive {
	w := NewMemoryWriter(opts...)
	return &Archive{mode: ModeWrite, opts: w.opts, w: w}
}

// Mode はアーカイブのモードを返します
func (a *Archive) Mode() Mode {
	return a.mode
}

// Close は書き込み用の場合は PackUp してから閉じます
func (a *Archive) Close() error {
	if a.mode == ModeRead {
		return a.r.Close()
	}
	_, err := a.w.PackUp()
	if a.file != nil {
		err = errors.Join(err, a.file.Close())
	}
	return err
}

// PackUp はインデックスを書き込みます。メモリ上のアーカイブではバイト列を返します。
func (a *Archive) PackUp() ([]byte, error) {
	if err := a.require(ModeWrite, "pack up"); err != nil {
		return nil, err
	}
	return a.w.PackUp()
}

func (a *Archive) require(m Mode, op string) error {
	if a.mode != m {
		return fmt.Errorf("%w: %s requires %s mode", ErrModeViolation, op, m)
	}
	return nil
}

// Reader は読み込み用の Reader を返します
func (a *Archive) Reader() (*Reader, error) {
	if err := a.require(ModeRead, "reader"); err != nil {
		return nil, err
	}
	return a.r, nil
}

// Entries はエントリの一覧を返します
func (a *Archive) Entries() ([]*FileEntry, error) {
	if err := a.require(ModeRead, "entries"); err != nil {
		return nil, err
	}
	return a.r.Entries(), nil
}

// IndexBytes は展開済みのインデックスを返します
func (a *Archive) IndexBytes() ([]byte, error) {
	if err := a.require(ModeRead, "dump index"); err != nil {
		return nil, err
	}
	return a.r.IndexBytes(), nil
}

// Read はエントリの内容を読み込みます
func (a *Archive) Read(e *FileEntry, opts ReadOptions) ([]byte, error) {
	if err := a.require(ModeRead, "read"); err != nil {
		return nil, err
	}
	return a.r.Read(e, opts)
}

// Extract はエントリを dest 以下に書き出します
func (a *Archive) Extract(e *FileEntry, dest string, opts ReadOptions) error {
	if err := a.require(ModeRead, "extract"); err != nil {
		return err
	}
	return a.r.Extract(e, dest, opts)
}

// Add はデータをアーカイブに追加します
func (a *Archive) Add(path string, data []byte, timestamp int64) (*FileEntry, error) {
	if err := a.require(ModeWrite, "add"); err != nil {
		return nil, err
	}
	return a.w.Add(path, data, timestamp)
}

// AddFile はファイルを internalPath として追加します。internalPath が空の場合はファイル名を使います。
func (a *Archive) AddFile(file, internalPath string, saveTimestamp bool) (*FileEntry, error) {
	if err := a.require(ModeWrite, "add file"); err != nil {
		return nil, err
	}
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if internalPath == "" {
		internalPath = filepath.Base(file)
	}
	var ts int64
	if saveTimestamp {
		ts = info.ModTime().UnixMilli()
	}
	return a.w.Add(internalPath, data, ts)
}

// matchInclude は name が include パターンのいずれかに一致するかを返します。パターンがなければ常に true です。
func (a *Archive) matchInclude(name string) (bool, error) {
	if len(a.opts.include) == 0 {
		return true, nil
	}
	for _, p := range a.opts.include {
		ok, err := doublestar.Match(p, name)
		if err != nil {
			return false, fmt.Errorf("xp3: include pattern %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

type folderFile struct {
	fsPath   string
	internal string
}

// AddFolder は root 以下のファイルをすべて追加します。
// 内部パスは root からの相対パス（区切りは /）で、flatten の場合はファイル名のみです。
// 準備（暗号化と圧縮）は並列に行い、書き込みは走査順に行います。
func (a *Archive) AddFolder(ctx context.Context, root string, flatten, saveTimestamps bool) ([]*FileEntry, error) {
	if err := a.require(ModeWrite, "add folder"); err != nil {
		return nil, err
	}

	fsys := a.opts.fsys
	if fsys == nil {
		fsys = os.DirFS(root)
	} else {
		sub, err := fs.Sub(fsys, root)
		if err != nil {
			return nil, err
		}
		fsys = sub
	}

	var files []folderFile
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		ok, err := a.matchInclude(p)
		if err != nil || !ok {
			return err
		}
		internal := p
		if flatten {
			internal = path.Base(p)
		}
		files = append(files, folderFile{fsPath: p, internal: internal})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("xp3: walk %s: %w", root, err)
	}
	a.opts.logger.Debug("packing folder", "root", root, "files", len(files))

	workers := max(1, a.opts.workers)
	batch := workers * 4
	entries := make([]*FileEntry, 0, len(files))
	for start := 0; start < len(files); start += batch {
		chunk := files[start:min(start+batch, len(files))]
		prepared := make([]*PreparedFile, len(chunk))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, f := range chunk {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				p, err := a.prepareFile(fsys, f, saveTimestamps)
				if err != nil {
					return err
				}
				prepared[i] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return entries, err
		}

		for _, p := range prepared {
			e, err := a.w.Commit(p)
			if err != nil {
				return entries, err
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (a *Archive) prepareFile(fsys fs.FS, f folderFile, saveTimestamps bool) (*PreparedFile, error) {
	data, err := fs.ReadFile(fsys, f.fsPath)
	if err != nil {
		return nil, &ArchiveError{Op: "read", Path: f.fsPath, Err: err}
	}
	var ts int64
	if saveTimestamps {
		info, err := fs.Stat(fsys, f.fsPath)
		if err != nil {
			return nil, &ArchiveError{Op: "stat", Path: f.fsPath, Err: err}
		}
		ts = info.ModTime().UnixMilli()
	}
	return a.w.Prepare(f.internal, data, ts)
}

// ExtractAll は（include で絞り込んだ）すべてのエントリを dest 以下に展開します。
// エントリ単位の失敗は ExtractReport に記録し、処理を続けます。
// 返すエラーはコンテキストのキャンセルまたは不正な include パターンのみです。
func (a *Archive) ExtractAll(ctx context.Context, dest string, opts ExtractOptions) (*ExtractReport, error) {
	if err := a.require(ModeRead, "extract all"); err != nil {
		return nil, err
	}

	var targets []*FileEntry
	for _, e := range a.r.entries {
		ok, err := a.matchInclude(a.r.DisplayPath(e))
		if err != nil {
			return nil, err
		}
		if ok {
			targets = append(targets, e)
		}
	}

	var (
		mu     sync.Mutex
		report = &ExtractReport{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.opts.workers))
	for _, e := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := a.r.DisplayPath(e)
			if opts.Progress != nil {
				opts.Progress(e, name)
			}
			mismatch, err := a.r.extract(a.opts.sink, e, dest, opts.ReadOptions)

			mu.Lock()
			defer mu.Unlock()
			if mismatch {
				report.Mismatched = append(report.Mismatched, name)
			}
			if err != nil {
				a.opts.logger.Warn("extract failed", "path", name, "error", err)
				report.Failures = append(report.Failures, err)
				return nil
			}
			report.Extracted++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, ctx.Err()
}
