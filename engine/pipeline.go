package engine

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkpresent/presenter/gpu"
	"github.com/vkpresent/presenter/lifecycle"
)

// ShaderLoader turns a shader path into a module on the given device.
type ShaderLoader interface {
	LoadShader(device gpu.Device, path string) (gpu.ShaderModule, error)
}

type ShaderPaths struct {
	Vertex   string
	Fragment string
}

// RenderPipeline is the single render pass and graphics pipeline every frame is
// drawn with. It is immutable once built.
type RenderPipeline struct {
	*lifecycle.Owner

	logger     *slog.Logger
	dc         *DeviceContext
	release    func()
	target     Target
	renderPass gpu.RenderPass
	layout     gpu.PipelineLayout
	pipeline   gpu.Pipeline
	closed     bool
}

func NewRenderPipeline(dc *DeviceContext, target Target, shaders ShaderLoader, stages ShaderPaths, logger *slog.Logger) (*RenderPipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	device := dc.Device()

	renderPass, err := device.CreateRenderPass(gpu.RenderPassCreateInfo{ColorFormat: target.Format})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create render pass"), ErrPipelineBuild)
	}

	vert, err := shaders.LoadShader(device, stages.Vertex)
	if err != nil {
		renderPass.Destroy()
		return nil, errors.Mark(errors.Wrapf(err, "load vertex shader %s", stages.Vertex), ErrPipelineBuild)
	}
	defer vert.Destroy()

	frag, err := shaders.LoadShader(device, stages.Fragment)
	if err != nil {
		renderPass.Destroy()
		return nil, errors.Mark(errors.Wrapf(err, "load fragment shader %s", stages.Fragment), ErrPipelineBuild)
	}
	defer frag.Destroy()

	layout, err := device.CreatePipelineLayout()
	if err != nil {
		renderPass.Destroy()
		return nil, errors.Mark(errors.Wrap(err, "create pipeline layout"), ErrPipelineBuild)
	}

	pipeline, err := device.CreateGraphicsPipeline(gpu.GraphicsPipelineCreateInfo{
		VertexShader:   vert,
		FragmentShader: frag,
		Layout:         layout,
		RenderPass:     renderPass,
		Extent:         target.Extent,
	})
	if err != nil {
		layout.Destroy()
		renderPass.Destroy()
		return nil, errors.Mark(errors.Wrap(err, "create graphics pipeline"), ErrPipelineBuild)
	}

	logger.Debug("pipeline created", "format", target.Format, "extent", target.Extent,
		"vertex", stages.Vertex, "fragment", stages.Fragment)

	return &RenderPipeline{
		Owner:      lifecycle.NewOwner("render pipeline"),
		logger:     logger,
		dc:         dc,
		release:    dc.Borrow("render pipeline"),
		target:     target,
		renderPass: renderPass,
		layout:     layout,
		pipeline:   pipeline,
	}, nil
}

func (p *RenderPipeline) RenderPass() gpu.RenderPass {
	return p.renderPass
}

func (p *RenderPipeline) Pipeline() gpu.Pipeline {
	return p.pipeline
}

func (p *RenderPipeline) Target() Target {
	return p.target
}

func (p *RenderPipeline) Close() error {
	if p.closed {
		return nil
	}
	if err := p.CheckReleasable(); err != nil {
		return errors.Mark(err, ErrTeardownOrder)
	}

	p.pipeline.Destroy()
	p.layout.Destroy()
	p.renderPass.Destroy()
	p.release()
	p.closed = true
	p.logger.Debug("pipeline destroyed")
	return nil
}
