package identity

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestResolveRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewStatResolver()
	id, err := r.Resolve(FromPath(path))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id.Ino == 0 {
		t.Error("resolved inode is zero")
	}
}

func TestIdentitySurvivesRename(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "before")
	newPath := filepath.Join(dir, "after")
	if err := os.WriteFile(oldPath, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewStatResolver()
	before, err := r.Resolve(FromPath(oldPath))
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	after, err := r.Resolve(FromPath(newPath))
	if err != nil {
		t.Fatal(err)
	}

	if before != after {
		t.Errorf("identity changed across rename: %v -> %v", before, after)
	}
}

func TestResolveDoesNotFollowSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")
	if err := os.WriteFile(target, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	r := NewStatResolver()
	targetID, err := r.Resolve(FromPath(target))
	if err != nil {
		t.Fatal(err)
	}
	linkID, err := r.Resolve(FromPath(link))
	if err != nil {
		t.Fatal(err)
	}

	if targetID == linkID {
		t.Error("symlink resolved to its target's identity; removal must identify the link itself")
	}
}

func TestResolveMissingPath(t *testing.T) {
	r := NewStatResolver()
	_, err := r.Resolve(FromPath(filepath.Join(t.TempDir(), "missing")))
	if err != unix.ENOENT {
		t.Errorf("Resolve returned %v, want ENOENT", err)
	}
}

func TestResolveRelativeToDirfd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	dirfd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(dirfd)

	r := NewStatResolver()
	relative, err := r.Resolve(FromPathAt(dirfd, "f"))
	if err != nil {
		t.Fatalf("Resolve relative failed: %v", err)
	}

	absolute, err := r.Resolve(FromPath(path))
	if err != nil {
		t.Fatal(err)
	}

	if relative != absolute {
		t.Errorf("relative resolution %v differs from absolute %v", relative, absolute)
	}
}

func TestFromFdMatchesPathResolution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fd)

	byFd, err := FromFd(fd)
	if err != nil {
		t.Fatalf("FromFd failed: %v", err)
	}

	byPath, err := NewStatResolver().Resolve(FromPath(path))
	if err != nil {
		t.Fatal(err)
	}

	if byFd != byPath {
		t.Errorf("FromFd %v differs from path resolution %v", byFd, byPath)
	}
}

func TestPathRefString(t *testing.T) {
	if got := FromPath("/tmp/a").String(); got != "/tmp/a" {
		t.Errorf("String() = %q, want /tmp/a", got)
	}
	if got := FromPathAt(9, "rel").String(); got != "dirfd 9: rel" {
		t.Errorf("String() = %q, want dirfd 9: rel", got)
	}
}
