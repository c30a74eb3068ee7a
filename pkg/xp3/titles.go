package xp3

import (
	"fmt"
	"slices"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

// Title はゲームタイトルごとの暗号化設定
type Title struct {
	Name   string
	Params crypto.Params
	// SpecialTag は書き込み時に File チャンクの前に置く難読化チャンクのタグ。
	// ゼロ値の場合は名前を難読化しません。
	SpecialTag  Tag
	Description string
}

// NewCrypter はタイトルの暗号を生成します
func (t Title) NewCrypter(mode crypto.XORMode) crypto.Crypter {
	return t.Params.NewCrypter(mode)
}

// Encrypted はタイトルが暗号化を使うかどうかを返します
func (t Title) Encrypted() bool {
	return !t.Params.IsIdentity()
}

// Titles はタイトル名から設定を引く表
type Titles map[string]Title

// TitleNone は暗号化なしのタイトル名
const TitleNone = "none"

// DefaultTitles は組み込みのタイトル一覧を返します
func DefaultTitles() Titles {
	neko := func(master uint32, sub byte, first bool) crypto.Params {
		return crypto.Params{
			Kind:         crypto.KindDualKeyXor,
			MasterKey:    master,
			SubKey:       sub,
			XORFirstByte: first,
		}
	}
	akabei := crypto.Params{Kind: crypto.KindRotatingKeystreamXor, Seed: 0x2F91DE55}

	list := []Title{
		{Name: TitleNone, Description: "暗号化なし"},
		{Name: "neko_vol1", Params: neko(0x1548E29C, 0xD7, false), SpecialTag: TagEliF, Description: "ネコぱら vol.1"},
		{Name: "neko_vol1_steam", Params: neko(0x44528B87, 0x23, false), SpecialTag: TagEliF, Description: "ネコぱら vol.1 (Steam)"},
		{Name: "neko_vol0", Params: neko(0x1548E29C, 0xD7, true), SpecialTag: TagNeko, Description: "ネコぱら vol.0"},
		{Name: "neko_vol0_steam", Params: neko(0x44528B87, 0x23, true), SpecialTag: TagNeko, Description: "ネコぱら vol.0 (Steam)"},
		{Name: "sousaku_kanojo", Params: akabei, Description: "創作彼女の恋愛公式"},
		{Name: "suiren_to_shion", Params: akabei, Description: "水蓮と紫苑"},
		{Name: "onenuki", Params: crypto.Params{Kind: crypto.KindSingleByteXor}, Description: "お姉様の代わりに抜いてあげます"},
	}

	titles := make(Titles, len(list))
	for _, t := range list {
		titles[t.Name] = t
	}
	return titles
}

// Lookup は名前からタイトルを取得します
func (ts Titles) Lookup(name string) (Title, error) {
	if name == "" {
		name = TitleNone
	}
	t, ok := ts[name]
	if !ok {
		return Title{}, fmt.Errorf("xp3: unknown title %q (available: %v)", name, ts.Names())
	}
	return t, nil
}

// Names はタイトル名をソートして返します
func (ts Titles) Names() []string {
	names := make([]string, 0, len(ts))
	for n := range ts {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
