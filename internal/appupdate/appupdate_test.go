package appupdate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atinylittleshell/commitreview/internal/core"
	"github.com/atinylittleshell/commitreview/internal/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockFileSystem struct {
	mock.Mock
}

func (m *MockFileSystem) Open(name string) (*os.File, error) {
	args := m.Called(name)
	file, _ := args.Get(0).(*os.File)
	return file, args.Error(1)
}

func (m *MockFileSystem) Create(name string) (*os.File, error) {
	args := m.Called(name)
	file, _ := args.Get(0).(*os.File)
	return file, args.Error(1)
}

type MockUpdater struct {
	mock.Mock
}

func (m *MockUpdater) DetectLatest(ctx context.Context, repo string) (Release, bool, error) {
	args := m.Called(ctx, repo)
	release, _ := args.Get(0).(Release)
	return release, args.Bool(1), args.Error(2)
}

type MockRelease struct {
	mock.Mock
}

func (m *MockRelease) Version() string {
	return m.Called().String(0)
}

func useTempDataDir(t *testing.T) {
	t.Setenv("COMMITREVIEW_HOME", t.TempDir())
	core.ResetPaths()
	t.Cleanup(core.ResetPaths)
}

func TestReadLatestVersion(t *testing.T) {
	useTempDataDir(t)
	mockFS := new(MockFileSystem)
	mockFile, err := os.CreateTemp(t.TempDir(), "test-latest-version")
	require.NoError(t, err)

	_, _ = mockFile.Write([]byte("1.2.3\n"))
	_, _ = mockFile.Seek(0, 0)
	mockFS.On("Open", core.LatestVersionFile()).Return(mockFile, nil)

	assert.Equal(t, "1.2.3", readLatestVersion(mockFS))
	mockFS.AssertExpectations(t)
}

func TestHandleSelfUpdate_DevBuild(t *testing.T) {
	mockFS := new(MockFileSystem)
	mockUpdater := new(MockUpdater)

	resultChannel := HandleSelfUpdate("dev", zap.NewNop(), mockFS, mockUpdater)

	_, ok := <-resultChannel
	assert.False(t, ok)
	mockUpdater.AssertNotCalled(t, "DetectLatest", mock.Anything, mock.Anything)
}

func TestHandleSelfUpdate_NewerRelease(t *testing.T) {
	useTempDataDir(t)
	mockFS := new(MockFileSystem)
	mockUpdater := new(MockUpdater)
	mockRelease := new(MockRelease)

	writeTarget, err := os.Create(filepath.Join(t.TempDir(), "latest"))
	require.NoError(t, err)

	mockFS.On("Create", core.LatestVersionFile()).Return(writeTarget, nil)
	mockRelease.On("Version").Return("1.2.0")
	mockUpdater.On("DetectLatest", mock.Anything, "atinylittleshell/commitreview").Return(mockRelease, true, nil)

	resultChannel := HandleSelfUpdate("1.0.0", zap.NewNop(), mockFS, mockUpdater)

	remoteVersion, ok := <-resultChannel
	assert.True(t, ok)
	assert.Equal(t, "1.2.0", remoteVersion)

	saved, err := os.ReadFile(writeTarget.Name())
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", string(saved))

	mockFS.AssertExpectations(t)
	mockRelease.AssertExpectations(t)
	mockUpdater.AssertExpectations(t)
}

func TestHandleSelfUpdate_AlreadyLatest(t *testing.T) {
	mockFS := new(MockFileSystem)
	mockUpdater := new(MockUpdater)
	mockRelease := new(MockRelease)

	mockRelease.On("Version").Return("1.2.4")
	mockUpdater.On("DetectLatest", mock.Anything, "atinylittleshell/commitreview").Return(mockRelease, true, nil)

	resultChannel := HandleSelfUpdate("2.0.0", zap.NewNop(), mockFS, mockUpdater)

	_, ok := <-resultChannel
	assert.False(t, ok)
	mockFS.AssertNotCalled(t, "Create", mock.Anything)
}

func TestHandleSelfUpdate_LookupFails(t *testing.T) {
	mockFS := new(MockFileSystem)
	mockUpdater := new(MockUpdater)
	mockUpdater.On("DetectLatest", mock.Anything, "atinylittleshell/commitreview").Return(nil, false, errors.New("rate limited"))

	resultChannel := HandleSelfUpdate("1.0.0", zap.NewNop(), mockFS, mockUpdater)

	_, ok := <-resultChannel
	assert.False(t, ok)
}

func TestRecordedNewerVersion(t *testing.T) {
	useTempDataDir(t)
	write := func(content string) {
		require.NoError(t, os.WriteFile(core.LatestVersionFile(), []byte(content), 0644))
	}
	fs := filesystem.DefaultFileSystem{}

	assert.Equal(t, "", RecordedNewerVersion("1.0.0", fs), "no record yet")

	write("1.1.0")
	assert.Equal(t, "1.1.0", RecordedNewerVersion("1.0.0", fs))
	assert.Equal(t, "", RecordedNewerVersion("1.1.0", fs))
	assert.Equal(t, "", RecordedNewerVersion("dev", fs))

	write("garbage")
	assert.Equal(t, "", RecordedNewerVersion("1.0.0", fs))
}
