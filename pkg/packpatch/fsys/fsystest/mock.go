// Package fsystest provides test doubles for the fsys.FS port.
package fsystest

import (
	"io/fs"

	"github.com/stretchr/testify/mock"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
)

// MockFS is a testify mock of fsys.FS.
type MockFS struct {
	mock.Mock
}

func (m *MockFS) Stat(name string) (fs.FileInfo, error) {
	args := m.Called(name)
	info, _ := args.Get(0).(fs.FileInfo)
	return info, args.Error(1)
}

func (m *MockFS) Lstat(name string) (fs.FileInfo, error) {
	args := m.Called(name)
	info, _ := args.Get(0).(fs.FileInfo)
	return info, args.Error(1)
}

func (m *MockFS) ReadFile(name string) ([]byte, error) {
	args := m.Called(name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockFS) ReadDir(name string) ([]fs.DirEntry, error) {
	args := m.Called(name)
	entries, _ := args.Get(0).([]fs.DirEntry)
	return entries, args.Error(1)
}

func (m *MockFS) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	args := m.Called(name, data, perm)
	return args.Error(0)
}

func (m *MockFS) MkdirAll(name string, perm fs.FileMode) error {
	args := m.Called(name, perm)
	return args.Error(0)
}

func (m *MockFS) Remove(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockFS) RemoveAll(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockFS) Rename(oldpath, newpath string) error {
	args := m.Called(oldpath, newpath)
	return args.Error(0)
}

// FaultyFS wraps an FS and fails every mutation once the budget of allowed
// mutations is spent. It simulates a run interrupted part way through.
type FaultyFS struct {
	fsys.FS

	// Allow is how many mutating calls succeed before failures start.
	Allow int
	// Err is returned once the budget is exhausted.
	Err error

	calls int
}

func (f *FaultyFS) spend() error {
	f.calls++
	if f.calls > f.Allow {
		return f.Err
	}
	return nil
}

// Calls returns how many mutating calls were attempted.
func (f *FaultyFS) Calls() int { return f.calls }

func (f *FaultyFS) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	if err := f.spend(); err != nil {
		return err
	}
	return f.FS.WriteFileAtomic(name, data, perm)
}

func (f *FaultyFS) MkdirAll(name string, perm fs.FileMode) error {
	if err := f.spend(); err != nil {
		return err
	}
	return f.FS.MkdirAll(name, perm)
}

func (f *FaultyFS) Remove(name string) error {
	if err := f.spend(); err != nil {
		return err
	}
	return f.FS.Remove(name)
}

func (f *FaultyFS) RemoveAll(name string) error {
	if err := f.spend(); err != nil {
		return err
	}
	return f.FS.RemoveAll(name)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if err := f.spend(); err != nil {
		return err
	}
	return f.FS.Rename(oldpath, newpath)
}

// Ensure the doubles implement fsys.FS.
var (
	_ fsys.FS = (*MockFS)(nil)
	_ fsys.FS = (*FaultyFS)(nil)
)
