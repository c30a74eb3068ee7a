package mocks

// MockArchiveFinder はArchiveFinderのモック実装です
type MockArchiveFinder struct {
	FoundFiles []string
	Error      error
}

// Find はモック実装です
func (m *MockArchiveFinder) Find(dir string) ([]string, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	return m.FoundFiles, nil
}
