// Package sdlwindow is a fixed-size SDL2 window that Vulkan can present to.
package sdlwindow

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkpresent/presenter/gpu"
)

type Options struct {
	Title  string
	Width  int
	Height int
}

// Window must be created, polled and destroyed on the main OS thread.
type Window struct {
	window         *sdl.Window
	closeRequested bool
}

func Open(opts Options) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initialize sdl video")
	}

	window, err := sdl.CreateWindow(opts.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(opts.Width), int32(opts.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrapf(err, "create %dx%d window", opts.Width, opts.Height)
	}

	return &Window{window: window}, nil
}

// SDL exposes the window for surface creation.
func (w *Window) SDL() *sdl.Window {
	return w.window
}

// RequiredExtensions are the instance extensions needed to present to this window.
func (w *Window) RequiredExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) DrawableSize() gpu.Extent2D {
	width, height := w.window.VulkanGetDrawableSize()
	return gpu.Extent2D{Width: int(width), Height: int(height)}
}

// PollEvents drains the SDL event queue. A quit event, a window close, or the
// Escape key latch CloseRequested.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			w.closeRequested = true
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_CLOSE {
				w.closeRequested = true
			}
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				w.closeRequested = true
			}
		}
	}
}

func (w *Window) CloseRequested() bool {
	return w.closeRequested
}

func (w *Window) Destroy() error {
	err := w.window.Destroy()
	sdl.Quit()
	return errors.Wrap(err, "destroy window")
}
