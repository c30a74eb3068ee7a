package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shiroemons/go-xp3/internal/xp3tool/interfaces"
	"github.com/shiroemons/go-xp3/pkg/crypto"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// ErrInvalidConfig は設定ファイルの内容が不正な場合のエラー
var ErrInvalidConfig = errors.New("設定ファイルの内容が不正です")

// TitleConfig は設定ファイルで追加するタイトル
type TitleConfig struct {
	Cipher       string `yaml:"cipher"`
	MasterKey    uint32 `yaml:"master_key"`
	SubKey       uint8  `yaml:"sub_key"`
	XORFirstByte bool   `yaml:"xor_first_byte"`
	Seed         uint32 `yaml:"seed"`
	Tag          string `yaml:"tag"`
	Description  string `yaml:"description"`
}

// FileConfig は --config で読み込む設定ファイル
//
//	titles:
//	  my_game:
//	    cipher: neko
//	    master_key: 0x1548E29C
//	    sub_key: 0xD7
//	    tag: eliF
//	names:
//	  - data/scenario/first.ks
//	name_files:
//	  - filelist.txt
//	name_encoding: shift_jis
type FileConfig struct {
	Titles       map[string]TitleConfig `yaml:"titles"`
	Names        []string               `yaml:"names"`
	NameFiles    []string               `yaml:"name_files"`
	NameEncoding string                 `yaml:"name_encoding"`

	dir string
}

// LoadFile は設定ファイルを読み込みます
func LoadFile(fs interfaces.FileSystem, path string) (*FileConfig, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	fc.dir = filepath.Dir(path)
	return &fc, nil
}

// Title は設定をタイトルに変換します
func (tc TitleConfig) Title(name string) (xp3.Title, error) {
	kind, err := crypto.ParseKind(tc.Cipher)
	if err != nil {
		return xp3.Title{}, fmt.Errorf("%w: title %s: %w", ErrInvalidConfig, name, err)
	}
	t := xp3.Title{
		Name: name,
		Params: crypto.Params{
			Kind:         kind,
			MasterKey:    tc.MasterKey,
			SubKey:       tc.SubKey,
			XORFirstByte: tc.XORFirstByte,
			Seed:         tc.Seed,
		},
		Description: tc.Description,
	}
	if tc.Tag != "" {
		tag, err := xp3.NewTag(tc.Tag)
		if err != nil {
			return xp3.Title{}, fmt.Errorf("%w: title %s: %w", ErrInvalidConfig, name, err)
		}
		t.SpecialTag = tag
	}
	return t, nil
}

// ApplyTitles は設定ファイルのタイトルを titles に追加します。同名のタイトルは上書きされます。
func (fc *FileConfig) ApplyTitles(titles xp3.Titles) error {
	for name, tc := range fc.Titles {
		t, err := tc.Title(name)
		if err != nil {
			return err
		}
		titles[name] = t
	}
	return nil
}

// SpecialTags は設定ファイルのタイトルが使うタグを返します
func (fc *FileConfig) SpecialTags() []xp3.Tag {
	var tags []xp3.Tag
	for name, tc := range fc.Titles {
		if tc.Tag == "" {
			continue
		}
		if t, err := tc.Title(name); err == nil {
			tags = append(tags, t.SpecialTag)
		}
	}
	return tags
}

// Dictionary は names と name_files から難読化名の辞書を作成します。
// name_files の相対パスは設定ファイルのディレクトリが基準です。
func (fc *FileConfig) Dictionary(fs interfaces.FileSystem, decode func(string) (string, error)) (xp3.Dictionary, error) {
	d := xp3.NewDictionary(fc.Names...)
	for _, f := range fc.NameFiles {
		if !filepath.IsAbs(f) {
			f = filepath.Join(fc.dir, f)
		}
		data, err := fs.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read name file %s: %w", f, err)
		}
		text := string(data)
		if decode != nil {
			if text, err = decode(text); err != nil {
				return nil, fmt.Errorf("decode name file %s: %w", f, err)
			}
		}
		for line := range strings.Lines(text) {
			if name := strings.TrimSpace(line); name != "" && !strings.HasPrefix(name, "#") {
				d.Add(name)
			}
		}
	}
	return d, nil
}
