package gputest

import (
	"fmt"
	"time"

	"github.com/vkpresent/presenter/gpu"
)

type Queue struct {
	dev    *Device
	family int
}

func (q *Queue) Family() int {
	return q.family
}

func (q *Queue) Submit(info gpu.SubmitInfo, fence gpu.Fence) error {
	d := q.dev
	if d.SubmitErr != nil {
		return d.SubmitErr
	}

	s := &Submission{Seq: len(d.Submissions), Family: q.family, Image: -1}
	if fence != nil {
		s.Fence = fence.(*Fence)
		if s.Fence.signaled {
			d.violate("submit %d fenced with signaled Fence#%d", s.Seq, s.Fence.id)
		}
		if s.Fence.pending != nil {
			d.violate("submit %d fenced with Fence#%d already in use", s.Seq, s.Fence.id)
		}
		s.Fence.pending = s
	}

	for _, w := range info.WaitSemaphores {
		sem := w.(*Semaphore)
		if !sem.signaled {
			d.violate("submit %d waits on unsignaled Semaphore#%d", s.Seq, sem.id)
		}
		sem.signaled = false
	}

	for _, c := range info.CommandBuffers {
		cb := c.(*CommandBuffer)
		if cb.recording {
			d.violate("submit %d uses CommandBuffer %d while it is recording", s.Seq, cb.index)
		}
		if cb.inUse {
			d.violate("submit %d uses CommandBuffer %d while it is pending", s.Seq, cb.index)
		}
		cb.inUse = true
		s.buffers = append(s.buffers, cb)
		if cb.framebuffer != nil {
			s.Image = cb.framebuffer.View.Image.Index
		}
	}

	if s.Image >= 0 {
		for _, p := range d.pending {
			if p.Image == s.Image {
				d.violate("submit %d renders image %d while submit %d still uses it", s.Seq, s.Image, p.Seq)
			}
		}
	}

	for _, sig := range info.SignalSemaphores {
		sem := sig.(*Semaphore)
		if sem.signaled {
			d.violate("submit %d signals Semaphore#%d which is already signaled", s.Seq, sem.id)
		}
		sem.signaled = true
	}

	d.Submissions = append(d.Submissions, s)
	d.pending = append(d.pending, s)
	if len(d.pending) > d.MaxPending {
		d.MaxPending = len(d.pending)
	}
	return nil
}

func (q *Queue) Present(info gpu.PresentInfo) (gpu.Status, error) {
	d := q.dev
	if d.PresentErr != nil {
		return gpu.StatusSuccess, d.PresentErr
	}

	for _, w := range info.WaitSemaphores {
		sem := w.(*Semaphore)
		if !sem.signaled {
			d.violate("present of image %d waits on unsignaled Semaphore#%d", info.ImageIndex, sem.id)
		}
		sem.signaled = false
	}

	n := len(d.Presented)
	d.Presented = append(d.Presented, info.ImageIndex)
	if n < len(d.PresentStatuses) {
		return d.PresentStatuses[n], nil
	}
	return gpu.StatusSuccess, nil
}

type Swapchain struct {
	*object
	Info gpu.SwapchainCreateInfo

	images   []*Image
	acquires int
}

func (s *Swapchain) Images() ([]gpu.Image, error) {
	images := make([]gpu.Image, len(s.images))
	for i, img := range s.images {
		images[i] = img
	}
	return images, nil
}

func (s *Swapchain) AcquireNextImage(timeout time.Duration, signal gpu.Semaphore) (int, gpu.Status, error) {
	d := s.dev
	n := s.acquires
	s.acquires++
	d.AcquireTimeouts = append(d.AcquireTimeouts, timeout)

	if d.AcquireErr != nil {
		return 0, gpu.StatusSuccess, d.AcquireErr
	}

	status := gpu.StatusSuccess
	if n < len(d.AcquireStatuses) {
		status = d.AcquireStatuses[n]
	}
	if status == gpu.StatusOutOfDate {
		return 0, status, nil
	}

	idx := n % len(s.images)
	if len(d.AcquireOrder) > 0 {
		idx = d.AcquireOrder[n%len(d.AcquireOrder)]
	}

	sem := signal.(*Semaphore)
	if sem.signaled {
		d.violate("acquire %d signals Semaphore#%d which is already signaled", n, sem.id)
	}
	sem.signaled = true
	d.Acquired = append(d.Acquired, idx)
	return idx, status, nil
}

// Image is a swapchain image. It is owned by its swapchain.
type Image struct {
	Index     int
	swapchain *Swapchain
}

type ImageView struct {
	*object
	Image  *Image
	Format gpu.Format
}

type RenderPass struct {
	*object
	Info gpu.RenderPassCreateInfo
}

type ShaderModule struct {
	*object
	Code []uint32
}

type PipelineLayout struct {
	*object
}

type Pipeline struct {
	*object
	Info gpu.GraphicsPipelineCreateInfo
}

type Framebuffer struct {
	*object
	View   *ImageView
	Extent gpu.Extent2D
}

type CommandPool struct {
	*object
	Family  int
	Buffers []*CommandBuffer
}

func (p *CommandPool) Allocate(count int) ([]gpu.CommandBuffer, error) {
	var buffers []gpu.CommandBuffer
	for i := 0; i < count; i++ {
		n := p.dev.created[KindCommandBuffer]
		p.dev.created[KindCommandBuffer]++
		if f, ok := p.dev.faults[KindCommandBuffer]; ok && f.at == n {
			return nil, f.err
		}
		cb := &CommandBuffer{pool: p, index: len(p.Buffers)}
		p.Buffers = append(p.Buffers, cb)
		buffers = append(buffers, cb)
	}
	return buffers, nil
}

// Destroy frees the pool's command buffers along with it.
func (p *CommandPool) Destroy() {
	for _, cb := range p.Buffers {
		if cb.inUse {
			p.dev.violate("CommandPool#%d destroyed while CommandBuffer %d is pending", p.id, cb.index)
		}
	}
	p.object.Destroy()
}

// CommandBuffer records the commands written to it as text, one per op.
type CommandBuffer struct {
	Ops []string

	pool        *CommandPool
	index       int
	recording   bool
	inUse       bool
	framebuffer *Framebuffer
}

func (c *CommandBuffer) op(format string, args ...interface{}) {
	if !c.recording {
		c.pool.dev.violate("CommandBuffer %d: %s outside recording", c.index, fmt.Sprintf(format, args...))
	}
	c.Ops = append(c.Ops, fmt.Sprintf(format, args...))
}

func (c *CommandBuffer) Reset() error {
	if c.inUse {
		c.pool.dev.violate("CommandBuffer %d reset while pending", c.index)
	}
	c.Ops = nil
	c.recording = false
	c.framebuffer = nil
	return nil
}

func (c *CommandBuffer) Begin() error {
	if c.inUse {
		c.pool.dev.violate("CommandBuffer %d begun while pending", c.index)
	}
	c.recording = true
	c.op("begin")
	return nil
}

func (c *CommandBuffer) BeginRenderPass(info gpu.RenderPassBeginInfo) error {
	c.framebuffer = info.Framebuffer.(*Framebuffer)
	c.op("beginRenderPass image=%d extent=%s clear=%v", c.framebuffer.View.Image.Index, info.Extent, info.ClearColor)
	return nil
}

func (c *CommandBuffer) BindPipeline(pipeline gpu.Pipeline) {
	c.op("bindPipeline")
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	c.op("draw %d %d %d %d", vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *CommandBuffer) EndRenderPass() {
	c.op("endRenderPass")
}

func (c *CommandBuffer) End() error {
	c.op("end")
	c.recording = false
	return c.pool.dev.EndErr
}

type Semaphore struct {
	*object
	signaled bool
}

func (s *Semaphore) Signaled() bool {
	return s.signaled
}

type Fence struct {
	*object
	signaled bool
	pending  *Submission
}

func (f *Fence) Signaled() bool {
	return f.signaled
}

func (f *Fence) Destroy() {
	if f.pending != nil {
		f.dev.violate("Fence#%d destroyed while its submission is pending", f.id)
	}
	f.object.Destroy()
}
