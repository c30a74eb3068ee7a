package fileutil

import "errors"

var (
	// ErrReadDirectory はディレクトリ内のファイル一覧を取得できない場合のエラー
	ErrReadDirectory = errors.New("ディレクトリ内のファイル一覧を取得できませんでした")

	// ErrNoArchives はディレクトリに.xp3ファイルがない場合のエラー
	ErrNoArchives = errors.New(".xp3ファイルが見つかりませんでした")

	// ErrUnknownEncoding は不明な文字コードが指定された場合のエラー
	ErrUnknownEncoding = errors.New("不明な文字コードです")
)
