package xp3

import (
	"encoding/binary"
	"errors"
	"time"
)

// Segment はファイル本体の連続した 1 区間
type Segment struct {
	Compressed       bool
	Offset           uint64
	UncompressedSize uint64
	CompressedSize   uint64
}

// Info はエントリの info チャンク
type Info struct {
	Encrypted        bool
	UncompressedSize uint64
	CompressedSize   uint64
	// Name は内部パス。難読化された形式ではパスのハッシュです。
	Name string
}

// SpecialFormat は難読化された形式で File チャンクの前に置かれるチャンク
type SpecialFormat struct {
	Tag      Tag
	Checksum uint32
	Path     string
}

// FileEntry はアーカイブ内の 1 ファイル
type FileEntry struct {
	Checksum  uint32
	Timestamp int64 // ミリ秒、0 は未設定
	Segments  []Segment
	Info      Info
	Special   *SpecialFormat
}

var (
	errMissingInfo     = errors.New("missing info chunk")
	errMissingSegments = errors.New("missing segm chunk")
	errMissingChecksum = errors.New("missing adlr chunk")
	errSegmentRecord   = errors.New("segm size is not a multiple of the record size")
)

// GetEntryName はインデックスに記録された名前を取得します
func (e *FileEntry) GetEntryName() string {
	return e.Info.Name
}

// GetOriginalSize は元のサイズを取得します
func (e *FileEntry) GetOriginalSize() uint64 {
	return e.Info.UncompressedSize
}

// GetCompressedSize は圧縮後のサイズを取得します
func (e *FileEntry) GetCompressedSize() uint64 {
	return e.Info.CompressedSize
}

// Path は表示用のパスを返します。
// 難読化チャンクに元のパスがあればそれを、なければインデックス上の名前を返します。
func (e *FileEntry) Path() string {
	if e.Special != nil && e.Special.Path != "" {
		return e.Special.Path
	}
	return e.GetEntryName()
}

// IsEncrypted は暗号化されているかどうかを返します
func (e *FileEntry) IsEncrypted() bool {
	return e.Info.Encrypted
}

// IsCompressed はいずれかのセグメントが圧縮されているかどうかを返します
func (e *FileEntry) IsCompressed() bool {
	for _, s := range e.Segments {
		if s.Compressed {
			return true
		}
	}
	return false
}

// Time はタイムスタンプを time.Time で返します。未設定の場合はゼロ値です。
func (e *FileEntry) Time() time.Time {
	if e.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Timestamp)
}

// appendTo はエントリを（必要なら難読化チャンクに続けて）File チャンクとして追加します。
// レイアウトは KiriKiri 本体と同じ: segm は flags, offset, 元サイズ, 格納サイズ、info の名前長は u16 です。
func (e *FileEntry) appendTo(dst []byte) ([]byte, error) {
	name, err := encodeName(e.Info.Name)
	if err != nil {
		return nil, err
	}

	if e.Special != nil {
		path, err := encodeName(e.Special.Path)
		if err != nil {
			return nil, err
		}
		special := make([]byte, 0, 6+len(path))
		special = binary.LittleEndian.AppendUint32(special, e.Special.Checksum)
		special = binary.LittleEndian.AppendUint16(special, uint16(len(path)/2))
		special = append(special, path...)
		dst = appendChunk(dst, e.Special.Tag, special)
	}

	var body []byte
	if e.Timestamp != 0 {
		body = appendChunk(body, tagTime, binary.LittleEndian.AppendUint64(nil, uint64(e.Timestamp)))
	}
	body = appendChunk(body, tagAdlr, binary.LittleEndian.AppendUint32(nil, e.Checksum))

	segm := make([]byte, 0, segmentRecordSize*len(e.Segments))
	for _, s := range e.Segments {
		var flags uint32
		if s.Compressed {
			flags |= segmentFlagZlib
		}
		segm = binary.LittleEndian.AppendUint32(segm, flags)
		segm = binary.LittleEndian.AppendUint64(segm, s.Offset)
		segm = binary.LittleEndian.AppendUint64(segm, s.UncompressedSize)
		segm = binary.LittleEndian.AppendUint64(segm, s.CompressedSize)
	}
	body = appendChunk(body, tagSegm, segm)

	info := make([]byte, 0, 22+len(name))
	var flags uint32
	if e.Info.Encrypted {
		flags |= infoFlagProtected
	}
	info = binary.LittleEndian.AppendUint32(info, flags)
	info = binary.LittleEndian.AppendUint64(info, e.Info.UncompressedSize)
	info = binary.LittleEndian.AppendUint64(info, e.Info.CompressedSize)
	info = binary.LittleEndian.AppendUint16(info, uint16(len(name)/2))
	info = append(info, name...)
	body = appendChunk(body, tagInfo, info)

	return appendChunk(dst, TagFile, body), nil
}

// parseFileChunk は File チャンクの中身を解析します。
// 同じサブチャンクが複数ある場合は最後のものが有効です。
func parseFileChunk(payload []byte, offset int64) (*FileEntry, error) {
	e := &FileEntry{}
	var haveInfo, haveSegm, haveAdlr bool

	err := walkChunks(payload, offset, func(tag Tag, b []byte, off int64) error {
		r := &fieldReader{b: b}
		switch tag {
		case tagInfo:
			flags := r.uint32()
			e.Info.Encrypted = flags&(infoFlagProtected|infoFlagEncrypted) != 0
			e.Info.UncompressedSize = r.uint64()
			e.Info.CompressedSize = r.uint64()
			units := int(r.uint16())
			name := r.take(units * 2)
			if r.err != nil {
				return formatError("info chunk", off, r.err)
			}
			decoded, err := decodeName(name)
			if err != nil {
				return formatError("info name", off, err)
			}
			e.Info.Name = decoded
			haveInfo = true
		case tagSegm:
			if len(b)%segmentRecordSize != 0 {
				return formatError("segm chunk", off, errSegmentRecord)
			}
			segs := make([]Segment, 0, len(b)/segmentRecordSize)
			for r.pos < len(b) {
				flags := r.uint32()
				segs = append(segs, Segment{
					Compressed:       flags&segmentFlagZlib != 0,
					Offset:           r.uint64(),
					UncompressedSize: r.uint64(),
					CompressedSize:   r.uint64(),
				})
			}
			e.Segments = segs
			haveSegm = len(segs) > 0
		case tagAdlr:
			e.Checksum = r.uint32()
			if r.err != nil {
				return formatError("adlr chunk", off, r.err)
			}
			haveAdlr = true
		case tagTime:
			e.Timestamp = int64(r.uint64())
			if r.err != nil {
				return formatError("time chunk", off, r.err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case !haveInfo:
		return nil, formatError("File chunk", offset, errMissingInfo)
	case !haveSegm:
		return nil, formatError("File chunk", offset, errMissingSegments)
	case !haveAdlr:
		return nil, formatError("File chunk", offset, errMissingChecksum)
	}
	return e, nil
}

// parseSpecialChunk は難読化チャンク（チェックサムと元のパス）を解析します
func parseSpecialChunk(tag Tag, payload []byte, offset int64) (*SpecialFormat, error) {
	r := &fieldReader{b: payload}
	checksum := r.uint32()
	units := int(r.uint16())
	name := r.take(units * 2)
	if r.err != nil {
		return nil, formatError(tag.String()+" chunk", offset, r.err)
	}
	path, err := decodeName(name)
	if err != nil {
		return nil, formatError(tag.String()+" name", offset, err)
	}
	return &SpecialFormat{Tag: tag, Checksum: checksum, Path: path}, nil
}
