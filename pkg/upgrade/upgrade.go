// Package upgrade replaces the running binary with the latest GitHub release.
package upgrade

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	repoOwner  = "lazyops"
	repoName   = "lazyops"
	binaryName = "lazyops"
)

// ErrUnsupported is returned on platforms without a tar.gz release asset.
var ErrUnsupported = errors.New("self-upgrade is not supported on this platform")

// Release represents a GitHub release
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Asset represents a release asset
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Upgrader checks for and installs releases.
type Upgrader struct {
	APIBase      string
	DownloadBase string
	GOOS         string
	GOARCH       string
	HTTP         *http.Client
	Out          io.Writer
	Logger       *zap.Logger
}

// New returns an Upgrader for this platform talking to github.com.
func New(logger *zap.Logger) *Upgrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upgrader{
		APIBase:      "https://api.github.com",
		DownloadBase: "https://github.com",
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		HTTP:         &http.Client{},
		Out:          os.Stdout,
		Logger:       logger,
	}
}

func (u *Upgrader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return u.HTTP.Do(req)
}

// LatestVersion fetches the tag of the latest release.
func (u *Upgrader) LatestVersion(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", u.APIBase, repoOwner, repoName)
	resp, err := u.get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to check for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("failed to check for updates: HTTP %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to parse release info: %w", err)
	}
	return release.TagName, nil
}

// NeedsUpdate compares current version with latest using numeric semver comparison.
// Development builds never update.
func NeedsUpdate(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")
	if current == "dev" || latest == "" {
		return false
	}
	cParts := strings.Split(current, ".")
	lParts := strings.Split(latest, ".")
	for i := 0; i < len(cParts) && i < len(lParts); i++ {
		c, _ := strconv.Atoi(cParts[i])
		l, _ := strconv.Atoi(lParts[i])
		if c < l {
			return true
		}
		if c > l {
			return false
		}
	}
	return len(lParts) > len(cParts)
}

// AssetName is the release archive for one version and platform.
func (u *Upgrader) AssetName(version string) string {
	ver := strings.TrimPrefix(version, "v")
	ext := "tar.gz"
	if u.GOOS == "windows" {
		ext = "zip"
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", binaryName, ver, u.GOOS, u.GOARCH, ext)
}

func (u *Upgrader) downloadURL(version string) string {
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s",
		u.DownloadBase, repoOwner, repoName, version, u.AssetName(version))
}

func (u *Upgrader) printf(format string, args ...any) {
	if u.Out != nil {
		fmt.Fprintf(u.Out, format, args...)
	}
}

// Check reports the latest version and whether it is newer than current.
func (u *Upgrader) Check(ctx context.Context, current string) (string, bool, error) {
	latest, err := u.LatestVersion(ctx)
	if err != nil {
		return "", false, err
	}
	return latest, NeedsUpdate(current, latest), nil
}

// Upgrade installs the latest release over execPath. An empty execPath means
// the running executable.
func (u *Upgrader) Upgrade(ctx context.Context, current, execPath string) error {
	u.printf("Checking for updates...\n")
	latest, newer, err := u.Check(ctx, current)
	if err != nil {
		return err
	}
	if !newer {
		u.printf("Already at latest version (%s)\n", current)
		return nil
	}
	if u.GOOS == "windows" {
		return ErrUnsupported
	}

	if execPath == "" {
		if execPath, err = os.Executable(); err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}

	u.printf("Upgrading from %s to %s...\n", current, latest)
	u.Logger.Info("upgrading", zap.String("from", current), zap.String("to", latest), zap.String("path", execPath))

	u.printf("Downloading %s...\n", u.AssetName(latest))
	resp, err := u.get(ctx, u.downloadURL(latest))
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("failed to download: HTTP %d (asset may not exist for your platform)", resp.StatusCode)
	}

	if err := Install(resp.Body, execPath); err != nil {
		return err
	}
	u.printf("\n✓ Successfully upgraded to %s\n", latest)
	return nil
}

// Install extracts the binary from a tar.gz stream and swaps it in for
// execPath, restoring the old binary if anything fails.
func Install(archive io.Reader, execPath string) error {
	tmpDir, err := os.MkdirTemp("", "lazyops-upgrade")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	newBinaryPath := filepath.Join(tmpDir, binaryName)
	if err := extractTarGz(archive, tmpDir, binaryName); err != nil {
		return fmt.Errorf("failed to extract: %w", err)
	}

	if err := checkWritePermission(execPath); err != nil {
		return fmt.Errorf("cannot write %s (try sudo): %w", filepath.Dir(execPath), err)
	}

	backupPath := execPath + ".bak"
	if err := os.Rename(execPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup current binary: %w", err)
	}
	if err := copyFile(newBinaryPath, execPath); err != nil {
		_ = os.Rename(backupPath, execPath)
		return fmt.Errorf("failed to install new binary: %w", err)
	}
	if err := os.Chmod(execPath, 0755); err != nil {
		_ = os.Rename(backupPath, execPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	_ = os.Remove(backupPath)
	return nil
}

func extractTarGz(r io.Reader, destDir, targetFile string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer func() { _ = gzr.Close() }()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Name == targetFile || filepath.Base(header.Name) == targetFile {
			return extractFile(tr, filepath.Join(destDir, targetFile))
		}
	}
	return errors.New("binary not found in archive")
}

func extractFile(r io.Reader, destPath string) error {
	outFile, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, r)
	return err
}

func checkWritePermission(path string) error {
	testFile := filepath.Join(filepath.Dir(path), ".lazyops-write-test")
	f, err := os.Create(testFile)
	if err != nil {
		return err
	}
	_ = f.Close()
	_ = os.Remove(testFile)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
