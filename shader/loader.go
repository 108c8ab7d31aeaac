// Package shader loads SPIR-V shader modules from a filesystem.
package shader

import (
	"context"
	"encoding/binary"
	"io/fs"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkpresent/presenter/gpu"
	"golang.org/x/sync/errgroup"
)

// ErrLoad marks every error that comes out of loading a shader.
var ErrLoad = errors.New("shader load failed")

// Loader reads SPIR-V files from FS. Files read by Preload are served from memory.
type Loader struct {
	FS fs.FS

	mu    sync.Mutex
	cache map[string][]uint32
}

func NewLoader(fsys fs.FS) *Loader {
	return &Loader{FS: fsys}
}

// bytesToBytecode reinterprets little-endian SPIR-V bytes as words.
func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 {
		return nil, errors.New("shader file is empty")
	}
	if len(b)%4 != 0 {
		return nil, errors.Newf("shader file is %d bytes, not a multiple of 4", len(b))
	}

	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return code, nil
}

func (l *Loader) read(path string) ([]uint32, error) {
	l.mu.Lock()
	code, ok := l.cache[path]
	l.mu.Unlock()
	if ok {
		return code, nil
	}

	b, err := fs.ReadFile(l.FS, path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %s", path), ErrLoad)
	}
	code, err = bytesToBytecode(b)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, path), ErrLoad)
	}
	return code, nil
}

// Preload reads every path concurrently so later LoadShader calls do not touch FS.
func (l *Loader) Preload(ctx context.Context, paths ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			code, err := l.read(path)
			if err != nil {
				return err
			}

			l.mu.Lock()
			defer l.mu.Unlock()
			if l.cache == nil {
				l.cache = make(map[string][]uint32)
			}
			l.cache[path] = code
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) LoadShader(device gpu.Device, path string) (gpu.ShaderModule, error) {
	code, err := l.read(path)
	if err != nil {
		return nil, err
	}

	module, err := device.CreateShaderModule(code)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "create shader module from %s", path), ErrLoad)
	}
	return module, nil
}
