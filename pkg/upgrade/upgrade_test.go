package upgrade

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		current string
		latest  string
		want    bool
	}{
		{"v1.0.0", "v1.0.1", true},
		{"1.2.0", "v1.10.0", true},
		{"v2.0.0", "v1.9.9", false},
		{"v1.0.0", "v1.0.0", false},
		{"v1.2", "v1.2.1", true},
		{"dev", "v9.9.9", false},
		{"v1.0.0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.current+"->"+tt.latest, func(t *testing.T) {
			if got := NeedsUpdate(tt.current, tt.latest); got != tt.want {
				t.Errorf("NeedsUpdate(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestAssetName(t *testing.T) {
	u := &Upgrader{GOOS: "linux", GOARCH: "amd64"}
	if got := u.AssetName("v1.4.0"); got != "lazyops_1.4.0_linux_amd64.tar.gz" {
		t.Errorf("AssetName = %q", got)
	}
	u.GOOS = "windows"
	if got := u.AssetName("v1.4.0"); !strings.HasSuffix(got, "_windows_amd64.zip") {
		t.Errorf("windows AssetName = %q", got)
	}
}

func tarGz(t *testing.T, name string, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: "README.md", Mode: 0644, Size: 2, Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0755, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestUpgrader(t *testing.T, latest string, archive []byte) *Upgrader {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/lazyops/lazyops/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"tag_name":"`+latest+`"}`)
	})
	mux.HandleFunc("/lazyops/lazyops/releases/download/", func(w http.ResponseWriter, r *http.Request) {
		if archive == nil {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &Upgrader{
		APIBase:      srv.URL,
		DownloadBase: srv.URL,
		GOOS:         "linux",
		GOARCH:       "amd64",
		HTTP:         srv.Client(),
		Out:          io.Discard,
		Logger:       zap.NewNop(),
	}
}

func TestCheck(t *testing.T) {
	u := newTestUpgrader(t, "v1.3.0", nil)
	latest, newer, err := u.Check(context.Background(), "v1.2.0")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if latest != "v1.3.0" || !newer {
		t.Errorf("Check() = %q, %v", latest, newer)
	}
}

func TestUpgradeReplacesBinary(t *testing.T) {
	u := newTestUpgrader(t, "v1.3.0", tarGz(t, "lazyops_1.3.0/lazyops", []byte("new binary")))
	exec := filepath.Join(t.TempDir(), "lazyops")
	if err := os.WriteFile(exec, []byte("old binary"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := u.Upgrade(context.Background(), "v1.2.0", exec); err != nil {
		t.Fatalf("Upgrade() error: %v", err)
	}
	got, err := os.ReadFile(exec)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new binary" {
		t.Errorf("binary = %q, want new binary", got)
	}
	if _, err := os.Stat(exec + ".bak"); !os.IsNotExist(err) {
		t.Error("backup left behind")
	}
}

func TestUpgradeAlreadyLatestLeavesBinary(t *testing.T) {
	u := newTestUpgrader(t, "v1.2.0", nil)
	exec := filepath.Join(t.TempDir(), "lazyops")
	if err := os.WriteFile(exec, []byte("old binary"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := u.Upgrade(context.Background(), "v1.2.0", exec); err != nil {
		t.Fatalf("Upgrade() error: %v", err)
	}
	got, _ := os.ReadFile(exec)
	if string(got) != "old binary" {
		t.Errorf("binary changed to %q", got)
	}
}

func TestUpgradeMissingAsset(t *testing.T) {
	u := newTestUpgrader(t, "v1.3.0", nil)
	exec := filepath.Join(t.TempDir(), "lazyops")
	if err := os.WriteFile(exec, []byte("old binary"), 0755); err != nil {
		t.Fatal(err)
	}
	err := u.Upgrade(context.Background(), "v1.2.0", exec)
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("Upgrade() error = %v, want HTTP 404", err)
	}
	got, _ := os.ReadFile(exec)
	if string(got) != "old binary" {
		t.Errorf("binary changed to %q", got)
	}
}

func TestInstallRejectsArchiveWithoutBinary(t *testing.T) {
	exec := filepath.Join(t.TempDir(), "lazyops")
	if err := os.WriteFile(exec, []byte("old binary"), 0755); err != nil {
		t.Fatal(err)
	}
	err := Install(bytes.NewReader(tarGz(t, "other-tool", []byte("x"))), exec)
	if err == nil || !strings.Contains(err.Error(), "binary not found") {
		t.Fatalf("Install() error = %v", err)
	}
	got, _ := os.ReadFile(exec)
	if string(got) != "old binary" {
		t.Errorf("binary changed to %q", got)
	}
}
