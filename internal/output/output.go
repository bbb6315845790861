// Package output writes rendered frames to disk.
//
// Frames arrive the way glReadPixels returns them: tightly packed RGBA8 rows,
// bottom row first. The raw format keeps that layout byte for byte; the image
// formats flip the rows so the file has the usual top-left origin.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an output file encoding.
type Format int

const (
	Raw Format = iota
	PNG
	TIFF
	BMP
)

var formatNames = []string{
	Raw:  "raw",
	PNG:  "png",
	TIFF: "tiff",
	BMP:  "bmp",
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Names lists every format name.
func Names() []string {
	return append([]string(nil), formatNames...)
}

// ParseFormat returns the format called s.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "bin":
		return Raw, nil
	case "png":
		return PNG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return Raw, fmt.Errorf("unknown output format %q (valid: %s)", s, strings.Join(formatNames, ", "))
}

// FormatFromPath picks a format from the file extension. Unknown or missing
// extensions mean Raw.
func FormatFromPath(path string) Format {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return Raw
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return Raw
	}
	return f
}

var ErrFrameSize = errors.New("frame size does not match dimensions")

func checkFrame(width, height int, pix []byte) error {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrFrameSize, len(pix), width, height)
	}
	return nil
}

// Image converts a bottom-up RGBA8 frame into an image with its origin at
// the top left. pix is not modified.
func Image(width, height int, pix []byte) (*image.NRGBA, error) {
	if err := checkFrame(width, height, pix); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	stride := width * 4
	for y := 0; y < height; y++ {
		src := pix[(height-1-y)*stride : (height-y)*stride]
		copy(img.Pix[y*img.Stride:y*img.Stride+stride], src)
	}
	return img, nil
}

// Encode writes the frame to w in format f.
func Encode(w io.Writer, f Format, width, height int, pix []byte) error {
	if f == Raw {
		if err := checkFrame(width, height, pix); err != nil {
			return err
		}
		_, err := w.Write(pix)
		return err
	}

	img, err := Image(width, height, pix)
	if err != nil {
		return err
	}
	switch f {
	case PNG:
		return png.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case BMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("unknown output format %v", f)
}

// Options controls Write.
type Options struct {
	Format Format

	// Progress, if set, receives a copy of every byte written.
	Progress io.Writer
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Write encodes the frame into path, creating or truncating it with mode
// 0600. On error the partial file is removed. It returns the number of
// bytes written.
func Write(path string, width, height int, pix []byte, opts Options) (int64, error) {
	if err := checkFrame(width, height, pix); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open output: %w", err)
	}
	var dst io.Writer = f
	if opts.Progress != nil {
		dst = io.MultiWriter(f, opts.Progress)
	}
	cw := &countingWriter{w: dst}

	// An existing file keeps its old mode through O_TRUNC.
	if err = f.Chmod(0o600); err != nil {
		err = fmt.Errorf("chmod: %w", err)
	} else {
		bw := bufio.NewWriter(cw)
		err = Encode(bw, opts.Format, width, height, pix)
		if err == nil {
			err = bw.Flush()
		}
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return cw.n, nil
}
