// Package capture provides the camera side of item capture: something that
// produces a JPEG frame on demand.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoFrame is returned when no frame is available to capture.
var ErrNoFrame = errors.New("no frame available")

// jpegMagic is the SOI marker every JPEG starts with.
var jpegMagic = []byte{0xff, 0xd8, 0xff}

// Camera produces frames on demand.
type Camera interface {
	Capture(ctx context.Context) (Frame, error)
}

// Frame is one captured JPEG image.
type Frame struct {
	Data []byte
	Path string // source file, if any
}

// Base64 returns the frame as standard base64.
func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// DataURL returns the frame as a data URL suitable for Item.ImageURL.
func (f Frame) DataURL() string {
	return "data:image/jpeg;base64," + f.Base64()
}

// ReadFrame loads a JPEG file. Symlinks, directories and files that do not
// start with a JPEG marker are rejected.
func ReadFrame(path string) (Frame, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Frame{}, fmt.Errorf("stat frame: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return Frame{}, fmt.Errorf("symlinks not supported: %s", path)
	}
	if !info.Mode().IsRegular() {
		return Frame{}, fmt.Errorf("not a regular file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("reading frame: %w", err)
	}
	if !bytes.HasPrefix(data, jpegMagic) {
		return Frame{}, fmt.Errorf("not a JPEG image: %s", path)
	}
	return Frame{Data: data, Path: path}, nil
}

// FileCamera captures the most recently modified JPEG in a directory, such
// as the drop folder of a phone sync tool.
type FileCamera struct {
	dir    string
	filter *frameFilter
}

// NewFileCamera creates a camera over dir. Files matching an ignore pattern,
// or one of the built-in patterns for partial and hidden files, are never
// captured.
func NewFileCamera(dir string, ignore []string) *FileCamera {
	return &FileCamera{dir: dir, filter: newFrameFilter(ignore)}
}

// Capture returns the newest *.jpg or *.jpeg file in the directory.
func (c *FileCamera) Capture(ctx context.Context) (Frame, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Frame{}, fmt.Errorf("%w: frame directory %s does not exist", ErrNoFrame, c.dir)
		}
		return Frame{}, fmt.Errorf("reading frame directory: %w", err)
	}

	var (
		newest     string
		newestTime time.Time
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !e.Type().IsRegular() || !isJPEGName(e.Name()) || c.filter.ignored(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = e.Name()
			newestTime = info.ModTime()
		}
	}

	if newest == "" {
		return Frame{}, fmt.Errorf("%w in %s", ErrNoFrame, c.dir)
	}
	return ReadFrame(filepath.Join(c.dir, newest))
}

func isJPEGName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".jpg" || ext == ".jpeg"
}

var _ Camera = (*FileCamera)(nil)
