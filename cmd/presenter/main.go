// Command presenter opens a window and draws a triangle into it until closed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/vkpresent/presenter/config"
	"github.com/vkpresent/presenter/engine"
	"github.com/vkpresent/presenter/platform/sdlwindow"
	"github.com/vkpresent/presenter/shader"
	"github.com/vkpresent/presenter/vkng"
)

func main() {
	// SDL and the window surface must stay on the main thread.
	runtime.LockOSThread()

	c, err := config.Parse(os.Args[0], os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("bad configuration", "err", err, "hint", errors.FlattenHints(err))
		os.Exit(2)
	}

	level, err := c.Level()
	if err != nil {
		slog.Error("bad configuration", "err", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, c, logger); err != nil {
		logger.Error("presenter failed", "err", fmt.Sprintf("%+v", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, c config.Config, logger *slog.Logger) (err error) {
	cfg, err := c.Engine()
	if err != nil {
		return err
	}

	window, err := sdlwindow.Open(sdlwindow.Options{
		Title:  c.Window.Title,
		Width:  c.Window.Width,
		Height: c.Window.Height,
	})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, window.Destroy())
	}()

	instance, err := vkng.Open(window.SDL(), vkng.Options{
		AppName:          c.Window.Title,
		EnableValidation: cfg.Validation,
	}, logger)
	if err != nil {
		return err
	}
	defer instance.Destroy()

	shaders := shader.NewLoader(os.DirFS("."))
	if err := shaders.Preload(ctx, cfg.Shaders.Vertex, cfg.Shaders.Fragment); err != nil {
		return err
	}

	eng, err := engine.New(instance, window, shaders, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, eng.Close())
	}()

	return eng.Run(ctx)
}
