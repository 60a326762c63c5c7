package appupdate

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/atinylittleshell/commitreview/internal/core"
	"github.com/atinylittleshell/commitreview/internal/filesystem"
	"github.com/creativeprojects/go-selfupdate"
	"go.uber.org/zap"
)

const releaseRepository = "atinylittleshell/commitreview"

// Release is the part of a published release we care about.
type Release interface {
	Version() string
}

// Updater looks up published releases.
type Updater interface {
	DetectLatest(ctx context.Context, repo string) (Release, bool, error)
}

// DefaultUpdater queries GitHub releases.
type DefaultUpdater struct{}

func (DefaultUpdater) DetectLatest(ctx context.Context, repo string) (Release, bool, error) {
	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil || !found {
		return nil, found, err
	}
	return latest, true, nil
}

// HandleSelfUpdate checks for a newer release in the background. The returned
// channel yields the newer version, if any, and is then closed. Dev builds
// close it immediately.
func HandleSelfUpdate(
	currentVersion string,
	logger *zap.Logger,
	fs filesystem.FileSystem,
	updater Updater,
) chan string {
	resultChannel := make(chan string, 1)

	currentSemVer, err := semver.NewVersion(currentVersion)
	if err != nil {
		logger.Debug("running a dev build, skipping self-update check")
		close(resultChannel)
		return resultChannel
	}

	go fetchAndSaveLatestVersion(resultChannel, logger, fs, updater, currentSemVer)

	return resultChannel
}

// RecordedNewerVersion returns the version saved by a previous check when it
// is newer than currentVersion, so the notice shows without waiting on the
// network.
func RecordedNewerVersion(currentVersion string, fs filesystem.FileSystem) string {
	currentSemVer, err := semver.NewVersion(currentVersion)
	if err != nil {
		return ""
	}
	recorded := readLatestVersion(fs)
	if recorded == "" {
		return ""
	}
	recordedSemVer, err := semver.NewVersion(recorded)
	if err != nil || !recordedSemVer.GreaterThan(currentSemVer) {
		return ""
	}
	return recorded
}

func readLatestVersion(fs filesystem.FileSystem) string {
	file, err := fs.Open(core.LatestVersionFile())
	if err != nil {
		return ""
	}
	defer file.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, file)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(buf.String())
}

func fetchAndSaveLatestVersion(resultChannel chan string, logger *zap.Logger, fs filesystem.FileSystem, updater Updater, currentSemVer *semver.Version) {
	defer close(resultChannel)

	latest, found, err := updater.DetectLatest(
		context.Background(),
		releaseRepository,
	)
	if err != nil {
		logger.Warn("error occurred while getting latest version from remote", zap.Error(err))
		return
	}
	if !found {
		logger.Warn("latest version could not be found")
		return
	}

	latestSemVer, err := semver.NewVersion(latest.Version())
	if err != nil {
		logger.Error("failed to parse latest version", zap.Error(err))
		return
	}

	if latestSemVer.LessThanEqual(currentSemVer) {
		logger.Debug("already running the latest version")
		return
	}

	file, err := fs.Create(core.LatestVersionFile())
	if err != nil {
		logger.Error("failed to save latest version", zap.Error(err))
		return
	}
	defer file.Close()

	_, err = file.WriteString(latest.Version())
	if err != nil {
		logger.Error("failed to save latest version", zap.Error(err))
		return
	}

	logger.Info("new version available", zap.String("current", currentSemVer.String()), zap.String("latest", latest.Version()))
	resultChannel <- latest.Version()
}
