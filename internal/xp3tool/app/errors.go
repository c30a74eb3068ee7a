package app

import "errors"

var (
	// ErrInputNotFound は入力が存在しない場合のエラー
	ErrInputNotFound = errors.New("入力が見つかりません")

	// ErrUnknownTitle は不明な暗号化タイトルが指定された場合のエラー
	ErrUnknownTitle = errors.New("不明な暗号化タイトルです")

	// ErrLoadConfig は設定ファイルの読み込みに失敗した場合のエラー
	ErrLoadConfig = errors.New("設定ファイルの読み込みに失敗しました")

	// ErrOpenArchive はアーカイブを開けなかった場合のエラー
	ErrOpenArchive = errors.New("アーカイブを開けませんでした")

	// ErrCreateArchive はアーカイブの作成に失敗した場合のエラー
	ErrCreateArchive = errors.New("アーカイブの作成に失敗しました")

	// ErrWriteIndex はインデックスの書き出しに失敗した場合のエラー
	ErrWriteIndex = errors.New("インデックスの書き出しに失敗しました")

	// ErrNothingExtracted は1つもファイルを抽出できなかった場合のエラー
	ErrNothingExtracted = errors.New("ファイルを1つも抽出できませんでした")
)
