package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/tinyrange/offscreen/internal/config"
	"github.com/tinyrange/offscreen/internal/gpu/factory"
	"github.com/tinyrange/offscreen/internal/gpu/soft"
	"github.com/tinyrange/offscreen/internal/output"
	"github.com/tinyrange/offscreen/internal/render"
	"golang.org/x/term"
)

// maxShaderSize bounds shader source files.
const maxShaderSize = 256 * 1024

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "offscreen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("offscreen", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", os.Getenv(config.EnvPath), "YAML configuration file (default: $"+config.EnvPath+")")
	width := flags.Int("width", config.DefaultWidth, "Surface width in pixels")
	height := flags.Int("height", config.DefaultHeight, "Surface height in pixels")
	out := flags.String("output", config.DefaultOutput, "Output file")
	format := flags.String("format", "", "Output format: "+strings.Join(output.Names(), ", ")+" (default: from the output extension)")
	driver := flags.String("driver", factory.Default, "Graphics driver: "+strings.Join(factory.Names(), ", "))
	eglLib := flags.String("egl-library", "", "EGL library name or path")
	glesLib := flags.String("gles-library", "", "OpenGL ES 2 library name or path")
	vertexShader := flags.String("vertex-shader", "", "File with the vertex shader source")
	fragmentShader := flags.String("fragment-shader", "", "File with the fragment shader source")
	clearColor := flags.String("clear-color", "", "Background colour as r,g,b,a in [0,1] (default: 0,0,0,0)")
	logLevel := flags.String("log-level", "info", "Log level: debug, info, warn, error")
	progress := flags.Bool("progress", false, "Show progress bars on a terminal")
	softFault := flags.String("soft-fault", "", "Make one step of the soft driver fail: "+strings.Join(soft.FaultNames(), ", "))
	writeConfig := flags.String("write-config", "", "Write the effective configuration to this file and exit")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags]\n\n", flags.Name())
		fmt.Fprintf(stderr, "Render a triangle off-screen with EGL and OpenGL ES and write the framebuffer to a file.\n")
		fmt.Fprintf(stderr, "Flags override the configuration file.\n\n")
		fmt.Fprintf(stderr, "Examples:\n")
		fmt.Fprintf(stderr, "  %s                                  1920x1080 raw RGBA to out.bin\n", flags.Name())
		fmt.Fprintf(stderr, "  %s -width 256 -height 256 -output tri.png\n", flags.Name())
		fmt.Fprintf(stderr, "  %s -driver soft -output tri.tiff      no GPU required\n", flags.Name())
		fmt.Fprintf(stderr, "  %s -config offscreen.yaml -log-level debug\n\n", flags.Name())
		fmt.Fprintf(stderr, "Flags:\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); errors.Is(err, flag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}

	if flags.NArg() != 0 {
		flags.Usage()
		return fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		return err
	}

	var flagErr error
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "output":
			cfg.Output = *out
		case "format":
			cfg.Format = *format
		case "driver":
			cfg.Driver = *driver
		case "egl-library":
			cfg.EGLLibrary = *eglLib
		case "gles-library":
			cfg.GLESLibrary = *glesLib
		case "vertex-shader":
			cfg.VertexShader = *vertexShader
		case "fragment-shader":
			cfg.FragmentShader = *fragmentShader
		case "clear-color":
			c, err := config.ParseColor(*clearColor)
			if err != nil {
				flagErr = errors.Join(flagErr, err)
			}
			cfg.ClearColor = c
		case "log-level":
			cfg.LogLevel = *logLevel
		case "progress":
			cfg.Progress = *progress
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if *writeConfig != "" {
		if err := config.Save(*writeConfig, cfg); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "wrote configuration to %s\n", *writeConfig)
		return nil
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if *configPath != "" {
		logger.Debug("configuration", "path", *configPath)
	}

	outFormat := output.FormatFromPath(cfg.Output)
	if cfg.Format != "" {
		outFormat, _ = output.ParseFormat(cfg.Format)
	}

	fault, err := soft.ParseFault(*softFault)
	if err != nil {
		return err
	}
	if fault != soft.NoFault && !strings.EqualFold(cfg.Driver, soft.Name) {
		return fmt.Errorf("-soft-fault needs -driver %s", soft.Name)
	}

	vs, err := readShader(cfg.VertexShader)
	if err != nil {
		return err
	}
	fragSrc, err := readShader(cfg.FragmentShader)
	if err != nil {
		return err
	}

	showProgress := false
	if f, ok := stderr.(*os.File); ok {
		showProgress = cfg.Progress && term.IsTerminal(int(f.Fd()))
	}

	drv, err := factory.Open(cfg.Driver, factory.Options{
		EGLLibrary:  cfg.EGLLibrary,
		GLESLibrary: cfg.GLESLibrary,
		SoftFault:   fault,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("open driver: %w", err)
	}
	defer drv.Close()

	opts := render.Options{
		Width:          cfg.Width,
		Height:         cfg.Height,
		VertexShader:   vs,
		FragmentShader: fragSrc,
		ClearColor:     cfg.Color(),
		Logger:         logger,
	}
	if showProgress {
		bar := progressbar.Default(int64(render.StageRendered), "render")
		defer bar.Close()
		opts.OnStage = func(s render.Stage) {
			bar.Describe(s.String())
			bar.Set(int(s))
		}
	}

	start := time.Now()
	session, err := render.NewSession(drv, opts)
	if err != nil {
		return err
	}
	pix, err := session.Run()
	if err != nil {
		var se *render.StepError
		if errors.As(err, &se) {
			logger.Error("render failed",
				"step", se.Op,
				"code", se.Code.String(),
				"reached", session.Reached().String())
		}
		return fmt.Errorf("render: %w", err)
	}
	logger.Info("frame rendered", "width", cfg.Width, "height", cfg.Height, "elapsed", time.Since(start))

	wopts := output.Options{Format: outFormat}
	if showProgress {
		total := int64(-1)
		if outFormat == output.Raw {
			total = int64(len(pix))
		}
		bar := progressbar.DefaultBytes(total, "write "+cfg.Output)
		defer bar.Close()
		wopts.Progress = bar
	}
	n, err := output.Write(cfg.Output, cfg.Width, cfg.Height, pix, wopts)
	if err != nil {
		return err
	}
	logger.Info("frame written", "path", cfg.Output, "format", outFormat.String(), "bytes", n)

	fmt.Fprintln(stdout, "Application dispatched and finished successfully")
	return nil
}

// readShader loads a shader source file. An empty path means the built-in
// shader.
func readShader(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("shader: %w", err)
	}
	if info.Size() > maxShaderSize {
		return "", fmt.Errorf("shader %s too large (%d bytes)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("shader: %w", err)
	}
	return string(data), nil
}
