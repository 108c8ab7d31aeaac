// Package config holds the presenter's settings: built-in defaults, overlaid by an
// optional TOML file, overlaid by command-line flags.
package config

import (
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"github.com/vkpresent/presenter/engine"
	"github.com/vkpresent/presenter/gpu"
)

// ErrInvalid marks configuration that parsed but cannot be used.
var ErrInvalid = errors.New("invalid configuration")

type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type Render struct {
	FramesInFlight  int        `toml:"frames_in_flight"`
	SwapchainImages int        `toml:"swapchain_images"`
	ClearColor      [4]float32 `toml:"clear_color"`
	VertexShader    string     `toml:"vertex_shader"`
	FragmentShader  string     `toml:"fragment_shader"`
	// FenceTimeout and StatsInterval are Go durations. Empty means none.
	FenceTimeout  string `toml:"fence_timeout"`
	StatsInterval string `toml:"stats_interval"`
}

type Debug struct {
	Validation bool   `toml:"validation"`
	LogLevel   string `toml:"log_level"`
}

type Config struct {
	Window Window `toml:"window"`
	Render Render `toml:"render"`
	Debug  Debug  `toml:"debug"`
}

func Default() Config {
	return Config{
		Window: Window{
			Title:  "presenter",
			Width:  800,
			Height: 600,
		},
		Render: Render{
			FramesInFlight: 2,
			ClearColor:     [4]float32{0, 0, 0, 1},
			VertexShader:   "shaders/vert.spv",
			FragmentShader: "shaders/frag.spv",
			StatsInterval:  "5s",
		},
		Debug: Debug{
			LogLevel: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults. Keys missing from the file
// keep their default value; unknown keys are an error.
func Load(path string) (Config, error) {
	c := Default()

	f, err := os.Open(path)
	if err != nil {
		return c, errors.Wrap(err, "open config")
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return c, errors.WithHint(errors.Wrapf(err, "decode %s", path), strict.String())
		}
		return c, errors.Wrapf(err, "decode %s", path)
	}
	return c, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "%s", name), ErrInvalid)
	}
	if d < 0 {
		return 0, errors.Mark(errors.Newf("%s must not be negative, got %s", name, value), ErrInvalid)
	}
	return d, nil
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Debug.LogLevel)); err != nil {
		return level, errors.Mark(errors.Wrap(err, "debug.log_level"), ErrInvalid)
	}
	return level, nil
}

func (c Config) Validate() error {
	var err error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		err = errors.CombineErrors(err, errors.Mark(errors.Newf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height), ErrInvalid))
	}
	if c.Render.FramesInFlight < 1 {
		err = errors.CombineErrors(err, errors.Mark(errors.Newf("render.frames_in_flight must be at least 1, got %d", c.Render.FramesInFlight), ErrInvalid))
	}
	if c.Render.SwapchainImages < 0 {
		err = errors.CombineErrors(err, errors.Mark(errors.Newf("render.swapchain_images must not be negative, got %d", c.Render.SwapchainImages), ErrInvalid))
	}
	if c.Render.VertexShader == "" || c.Render.FragmentShader == "" {
		err = errors.CombineErrors(err, errors.Mark(errors.New("render.vertex_shader and render.fragment_shader are required"), ErrInvalid))
	}
	for _, shader := range []struct{ key, path string }{
		{"render.vertex_shader", c.Render.VertexShader},
		{"render.fragment_shader", c.Render.FragmentShader},
	} {
		// Shaders are read through an fs.FS rooted at the working directory.
		if shader.path != "" && !fs.ValidPath(shader.path) {
			err = errors.CombineErrors(err, errors.WithHint(
				errors.Mark(errors.Newf("%s must be a slash-separated path relative to the working directory, got %q", shader.key, shader.path), ErrInvalid),
				"paths may not be absolute or contain \".\" or \"..\" elements"))
		}
	}
	if _, durErr := parseDuration("render.fence_timeout", c.Render.FenceTimeout); durErr != nil {
		err = errors.CombineErrors(err, durErr)
	}
	if _, durErr := parseDuration("render.stats_interval", c.Render.StatsInterval); durErr != nil {
		err = errors.CombineErrors(err, durErr)
	}
	if _, levelErr := c.Level(); levelErr != nil {
		err = errors.CombineErrors(err, levelErr)
	}
	return err
}

// Engine converts the settings into an engine configuration. The swapchain extent
// is left to the window's drawable size.
func (c Config) Engine() (engine.Config, error) {
	if err := c.Validate(); err != nil {
		return engine.Config{}, err
	}
	fenceTimeout, _ := parseDuration("render.fence_timeout", c.Render.FenceTimeout)
	statsInterval, _ := parseDuration("render.stats_interval", c.Render.StatsInterval)

	cfg := engine.DefaultConfig()
	cfg.Validation = c.Debug.Validation
	cfg.Extent = gpu.Extent2D{}
	cfg.SwapchainImages = c.Render.SwapchainImages
	cfg.FramesInFlight = c.Render.FramesInFlight
	cfg.ClearColor = mgl32.Vec4(c.Render.ClearColor)
	cfg.Shaders = engine.ShaderPaths{
		Vertex:   c.Render.VertexShader,
		Fragment: c.Render.FragmentShader,
	}
	cfg.FenceTimeout = fenceTimeout
	cfg.StatsInterval = statsInterval
	return cfg, nil
}

// Flags are the command-line overrides.
type Flags struct {
	Path     string
	Debug    bool
	Frames   int
	Width    int
	Height   int
	LogLevel string
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Path, "config", "", "path to a TOML config file")
	fs.BoolVar(&f.Debug, "debug", false, "enable validation layers and debug logging")
	fs.IntVar(&f.Frames, "frames", 0, "frames in flight")
	fs.IntVar(&f.Width, "width", 0, "window width")
	fs.IntVar(&f.Height, "height", 0, "window height")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	return f
}

// Apply copies the flags that were given on the command line into c.
func (f *Flags) Apply(fs *flag.FlagSet, c *Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "debug":
			if f.Debug {
				c.Debug.Validation = true
				c.Debug.LogLevel = "debug"
			}
		case "frames":
			c.Render.FramesInFlight = f.Frames
		case "width":
			c.Window.Width = f.Width
		case "height":
			c.Window.Height = f.Height
		}
	})
	// -log-level wins over -debug regardless of order.
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "log-level" {
			c.Debug.LogLevel = f.LogLevel
		}
	})
}

// Parse builds the configuration from command-line arguments, excluding the
// program name.
func Parse(name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	flags := RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}

	c := Default()
	if flags.Path != "" {
		var err error
		if c, err = Load(flags.Path); err != nil {
			return c, err
		}
	}
	flags.Apply(fs, &c)

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
