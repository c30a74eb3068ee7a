package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/shiroemons/go-xp3/internal/xp3tool/interfaces"
)

// OSFileSystem は実際のOSファイルシステムを使用する実装
type OSFileSystem struct{}

// NewOSFileSystem は新しいOSFileSystemを作成します
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// FileExists はファイルが存在するか確認します
func (fs *OSFileSystem) FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// ReadFile はファイルを読み込みます
func (fs *OSFileSystem) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// WriteFile はファイルを書き込みます
func (fs *OSFileSystem) WriteFile(filename string, data []byte, perm uint32) error {
	return os.WriteFile(filename, data, os.FileMode(perm))
}

// MkdirAll はディレクトリを作成します
func (fs *OSFileSystem) MkdirAll(path string, perm uint32) error {
	return os.MkdirAll(path, os.FileMode(perm))
}

// Stat はファイル情報を取得します
func (fs *OSFileSystem) Stat(name string) (interfaces.FileInfo, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ReadDir はディレクトリを読み込みます
func (fs *OSFileSystem) ReadDir(dirname string) ([]interfaces.DirEntry, error) {
	entries, err := os.ReadDir(dirname)
	if err != nil {
		return nil, err
	}

	result := make([]interfaces.DirEntry, len(entries))
	for i, entry := range entries {
		result[i] = entry
	}
	return result, nil
}

// ArchiveFinderWithFS は.xp3ファイルの検索を行います（FileSystemを使用）
type ArchiveFinderWithFS struct {
	fs interfaces.FileSystem
}

// NewArchiveFinderWithFS は新しいArchiveFinderWithFSを作成します
func NewArchiveFinderWithFS(fs interfaces.FileSystem) *ArchiveFinderWithFS {
	return &ArchiveFinderWithFS{fs: fs}
}

// Find は dir 直下の.xp3ファイルを名前順に返します
func (f *ArchiveFinderWithFS) Find(dir string) ([]string, error) {
	files, err := f.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDirectory, err)
	}

	var archives []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if XP3FilePattern.MatchString(file.Name()) {
			archives = append(archives, filepath.Join(dir, file.Name()))
		}
	}
	if len(archives) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArchives, dir)
	}
	slices.Sort(archives)
	return archives, nil
}
