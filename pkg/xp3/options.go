package xp3

import (
	"io"
	"io/fs"
	"log/slog"
	"runtime"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

type options struct {
	logger        *slog.Logger
	title         Title
	compress      bool
	compressIndex bool
	level         int
	xorMode       crypto.XORMode
	dict          Dictionary
	specialTags   []Tag
	fsys          fs.FS
	include       []string
	workers       int
	sink          Sink
}

func defaultOptions() options {
	return options{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		title:         Title{Name: TitleNone},
		compress:      true,
		compressIndex: true,
		level:         DefaultCompressionLevel,
		xorMode:       crypto.BulkXOR,
		workers:       runtime.NumCPU(),
		sink:          DirSink{},
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option は Reader / Writer / Archive の設定
type Option func(*options)

// WithLogger はログの出力先を設定します
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTitle は書き込み時に使うタイトル（暗号と難読化タグ）を設定します
func WithTitle(t Title) Option {
	return func(o *options) { o.title = t }
}

// WithCompression はファイル本体の zlib 圧縮の有無を設定します
func WithCompression(enabled bool) Option {
	return func(o *options) { o.compress = enabled }
}

// WithIndexCompression はインデックスの zlib 圧縮の有無を設定します
func WithIndexCompression(enabled bool) Option {
	return func(o *options) { o.compressIndex = enabled }
}

// WithCompressionLevel は zlib の圧縮レベルを設定します
func WithCompressionLevel(level int) Option {
	return func(o *options) { o.level = level }
}

// WithXORMode は暗号化で使う XOR の方式を設定します
func WithXORMode(mode crypto.XORMode) Option {
	return func(o *options) { o.xorMode = mode }
}

// WithDictionary は難読化された名前の解決に使う辞書を設定します
func WithDictionary(d Dictionary) Option {
	return func(o *options) { o.dict = d }
}

// WithSpecialTags は既知のタグ以外に難読化チャンクとして扱うタグを追加します
func WithSpecialTags(tags ...Tag) Option {
	return func(o *options) { o.specialTags = append(o.specialTags, tags...) }
}

// WithFS は AddFolder が走査するファイルシステムを設定します。
// 設定した場合、AddFolder の root は fsys 内のパスとして扱われます。
func WithFS(fsys fs.FS) Option {
	return func(o *options) { o.fsys = fsys }
}

// WithInclude は AddFolder と ExtractAll の対象を doublestar パターンで絞り込みます
func WithInclude(patterns ...string) Option {
	return func(o *options) { o.include = append(o.include, patterns...) }
}

// WithWorkers は並列処理のワーカー数を設定します
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithSink は展開先の書き込み方法を設定します
func WithSink(s Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}
