package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkpresent/presenter/gpu"
)

type renderPass struct {
	device *device
	handle core1_0.RenderPass
}

func (p *renderPass) Destroy() {
	p.device.driver.DestroyRenderPass(p.handle, nil)
}

type shaderModule struct {
	device *device
	handle core1_0.ShaderModule
}

func (m *shaderModule) Destroy() {
	m.device.driver.DestroyShaderModule(m.handle, nil)
}

type pipelineLayout struct {
	device *device
	handle core1_0.PipelineLayout
}

func (l *pipelineLayout) Destroy() {
	l.device.driver.DestroyPipelineLayout(l.handle, nil)
}

type pipeline struct {
	device *device
	handle core1_0.Pipeline
}

func (p *pipeline) Destroy() {
	p.device.driver.DestroyPipeline(p.handle, nil)
}

// CreateRenderPass builds a single-subpass pass that clears one color attachment
// and leaves it ready to present.
func (d *device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	rp, _, err := d.driver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         core1_0.Format(info.ColorFormat),
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}
	return &renderPass{device: d, handle: rp}, nil
}

func (d *device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	m, _, err := d.driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create shader module")
	}
	return &shaderModule{device: d, handle: m}, nil
}

func (d *device) CreatePipelineLayout() (gpu.PipelineLayout, error) {
	l, _, err := d.driver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}
	return &pipelineLayout{device: d, handle: l}, nil
}

// CreateGraphicsPipeline links a pipeline with no vertex input whose viewport and
// scissor are fixed to info.Extent.
func (d *device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	extent := fromExtent(info.Extent)

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: info.VertexShader.(*shaderModule).handle,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: info.FragmentShader.(*shaderModule).handle,
		Name:   "main",
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{
				X:        0,
				Y:        0,
				Width:    float32(extent.Width),
				Height:   float32(extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceClockwise,
		LineWidth:   1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOp: core1_0.LogicOpCopy,
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	pipelines, _, err := d.driver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages:             []core1_0.PipelineShaderStageCreateInfo{vertStage, fragStage},
			VertexInputState:   &core1_0.PipelineVertexInputStateCreateInfo{},
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{Topology: core1_0.PrimitiveTopologyTriangleList},
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			Layout:             info.Layout.(*pipelineLayout).handle,
			RenderPass:         info.RenderPass.(*renderPass).handle,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create graphics pipeline")
	}
	return &pipeline{device: d, handle: pipelines[0]}, nil
}
