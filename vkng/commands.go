package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkpresent/presenter/gpu"
)

type commandPool struct {
	device  *device
	handle  core1_0.CommandPool
	buffers []core1_0.CommandBuffer
}

// CreateCommandPool makes a pool whose buffers can be reset one at a time.
func (d *device) CreateCommandPool(family int) (gpu.CommandPool, error) {
	pool, _, err := d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: family,
		Flags:            core1_0.CommandPoolCreateResetBuffer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	return &commandPool{device: d, handle: pool}, nil
}

func (p *commandPool) Allocate(count int) ([]gpu.CommandBuffer, error) {
	buffers, _, err := p.device.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.handle,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate command buffers")
	}
	p.buffers = append(p.buffers, buffers...)

	out := make([]gpu.CommandBuffer, len(buffers))
	for i, b := range buffers {
		out[i] = &commandBuffer{device: p.device, handle: b}
	}
	return out, nil
}

func (p *commandPool) Destroy() {
	if len(p.buffers) > 0 {
		p.device.driver.FreeCommandBuffers(p.buffers...)
		p.buffers = nil
	}
	p.device.driver.DestroyCommandPool(p.handle, nil)
}

type commandBuffer struct {
	device *device
	handle core1_0.CommandBuffer
}

func (c *commandBuffer) Reset() error {
	_, err := c.device.driver.ResetCommandBuffer(c.handle, 0)
	return errors.Wrap(err, "reset command buffer")
}

func (c *commandBuffer) Begin() error {
	_, err := c.device.driver.BeginCommandBuffer(c.handle, core1_0.CommandBufferBeginInfo{})
	return errors.Wrap(err, "begin command buffer")
}

func (c *commandBuffer) BeginRenderPass(info gpu.RenderPassBeginInfo) error {
	color := info.ClearColor
	err := c.device.driver.CmdBeginRenderPass(c.handle, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  info.RenderPass.(*renderPass).handle,
			Framebuffer: info.Framebuffer.(*framebuffer).handle,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: fromExtent(info.Extent),
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{color[0], color[1], color[2], color[3]},
			},
		})
	return errors.Wrap(err, "begin render pass")
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	c.device.driver.CmdBindPipeline(c.handle, core1_0.PipelineBindPointGraphics, p.(*pipeline).handle)
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	c.device.driver.CmdDraw(c.handle, vertexCount, instanceCount, uint32(firstVertex), uint32(firstInstance))
}

func (c *commandBuffer) EndRenderPass() {
	c.device.driver.CmdEndRenderPass(c.handle)
}

func (c *commandBuffer) End() error {
	_, err := c.device.driver.EndCommandBuffer(c.handle)
	return errors.Wrap(err, "end command buffer")
}
