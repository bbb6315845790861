//go:build ignore

// This file demonstrates every public API in the offscreen package.
// It is excluded from the build and serves as a reference and compile-time check.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tinyrange/offscreen"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// =========================================================================
	// Drivers - egl loads libEGL/libGLESv2, soft renders in host memory
	// =========================================================================
	for _, name := range offscreen.Drivers() {
		fmt.Println("driver:", name)
	}

	// =========================================================================
	// Render - one frame, every resource released before returning
	// =========================================================================
	const width, height = 640, 480
	pix, err := offscreen.Render(width, height,
		offscreen.WithDriver("egl"),
		offscreen.WithLibraries("libEGL.so.1", "libGLESv2.so.2"),
		offscreen.WithLogger(logger),
		offscreen.WithClearColor(0, 0, 0, 1),
		offscreen.WithStageHook(func(s offscreen.Stage) {
			fmt.Println("reached", s)
		}),
	)
	if errors.Is(err, offscreen.ErrDriverUnavailable) {
		// No GPU stack: fall back to the software driver.
		pix, err = offscreen.Render(width, height, offscreen.WithDriver("soft"))
	}
	if err != nil {
		// StepError names the failing entry point, the driver error code and
		// for shader failures the stage and compiler log.
		var se *offscreen.StepError
		if errors.As(err, &se) {
			fmt.Println("failed step:", se.Op, se.Code)
			if se.Shader == offscreen.FragmentShader {
				fmt.Println("fragment shader log:", se.Log)
			}
		}
		switch {
		case errors.Is(err, offscreen.ErrNoCompatibleConfig):
			return fmt.Errorf("GPU offers no RGBA8 pbuffer config: %w", err)
		case errors.Is(err, offscreen.ErrShaderCompileFailed):
			return fmt.Errorf("shader: %w", err)
		}
		return err
	}
	_ = len(pix) == offscreen.FrameSize(width, height)

	// =========================================================================
	// Custom shaders - the vertex shader reads vPosition
	// =========================================================================
	_, _ = offscreen.Render(64, 64,
		offscreen.WithDriver("soft"),
		offscreen.WithShaders("", `precision mediump float;
void main(void) {
   gl_FragColor = vec4(0.0, 0.5, 1.0, 1.0);
}
`))

	// =========================================================================
	// WriteFile - raw keeps the bottom-up GL layout, images are flipped
	// =========================================================================
	if err := offscreen.WriteFile("out.bin", width, height, pix, offscreen.FormatRaw); err != nil {
		return err
	}
	if err := offscreen.WriteFile("out.png", width, height, pix, offscreen.FormatFromPath("out.png")); err != nil {
		return err
	}
	_ = offscreen.FormatTIFF
	_ = offscreen.FormatBMP

	return nil
}
