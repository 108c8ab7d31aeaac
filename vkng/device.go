package vkng

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkpresent/presenter/gpu"
)

// ErrFenceTimeout is returned when a fence wait runs out of time.
var ErrFenceTimeout = errors.New("timed out waiting for fence")

var (
	_ gpu.Instance = (*Instance)(nil)
	_ gpu.Adapter  = (*adapter)(nil)
	_ gpu.Device   = (*device)(nil)
)

type device struct {
	adapter   *adapter
	driver    core1_0.CoreDeviceDriver
	swapchain khr_swapchain.ExtensionDriver
	queues    map[int]*queue
}

func (d *device) Queue(family int) gpu.Queue {
	q, ok := d.queues[family]
	if !ok {
		q = &queue{device: d, handle: d.driver.GetQueue(family, 0)}
		d.queues[family] = q
	}
	return q
}

func (d *device) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	view, _, err := d.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image.(core1_0.Image),
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image view")
	}
	return &imageView{device: d, handle: view}, nil
}

func (d *device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	fb, _, err := d.driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  info.RenderPass.(*renderPass).handle,
		Layers:      1,
		Attachments: []core1_0.ImageView{info.View.(*imageView).handle},
		Width:       info.Extent.Width,
		Height:      info.Extent.Height,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create framebuffer")
	}
	return &framebuffer{device: d, handle: fb}, nil
}

func (d *device) CreateSemaphore() (gpu.Semaphore, error) {
	s, _, err := d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	return &semaphore{device: d, handle: s}, nil
}

func (d *device) CreateFence(signaled bool) (gpu.Fence, error) {
	var info core1_0.FenceCreateInfo
	if signaled {
		info.Flags = core1_0.FenceCreateSignaled
	}
	f, _, err := d.driver.CreateFence(nil, info)
	if err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return &fence{device: d, handle: f}, nil
}

func fences(list []gpu.Fence) []core1_0.Fence {
	out := make([]core1_0.Fence, len(list))
	for i, f := range list {
		out[i] = f.(*fence).handle
	}
	return out
}

func (d *device) WaitForFences(timeout time.Duration, list ...gpu.Fence) error {
	res, err := d.driver.WaitForFences(true, fromTimeout(timeout), fences(list)...)
	if err != nil {
		return errors.Wrap(err, "wait for fences")
	}
	if res == core1_0.VKTimeout {
		return errors.Wrapf(ErrFenceTimeout, "after %s", timeout)
	}
	return nil
}

func (d *device) ResetFences(list ...gpu.Fence) error {
	_, err := d.driver.ResetFences(fences(list)...)
	return errors.Wrap(err, "reset fences")
}

func (d *device) WaitIdle() error {
	_, err := d.driver.DeviceWaitIdle()
	return errors.Wrap(err, "wait for device idle")
}

func (d *device) Destroy() {
	d.driver.DestroyDevice(nil)
}

type queue struct {
	device *device
	handle core1_0.Queue
}

func (q *queue) Submit(info gpu.SubmitInfo, f gpu.Fence) error {
	stages := make([]core1_0.PipelineStageFlags, len(info.WaitSemaphores))
	for i := range stages {
		stages[i] = core1_0.PipelineStageColorAttachmentOutput
	}
	buffers := make([]core1_0.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		buffers[i] = cb.(*commandBuffer).handle
	}

	var signal *core1_0.Fence
	if f != nil {
		signal = &f.(*fence).handle
	}

	_, err := q.device.driver.QueueSubmit(q.handle, signal, core1_0.SubmitInfo{
		WaitSemaphores:   semaphores(info.WaitSemaphores),
		WaitDstStageMask: stages,
		CommandBuffers:   buffers,
		SignalSemaphores: semaphores(info.SignalSemaphores),
	})
	return errors.Wrap(err, "queue submit")
}

func (q *queue) Present(info gpu.PresentInfo) (gpu.Status, error) {
	res, err := q.device.swapchain.QueuePresent(q.handle, khr_swapchain.PresentInfo{
		WaitSemaphores: semaphores(info.WaitSemaphores),
		Swapchains:     []khr_swapchain.Swapchain{info.Swapchain.(*swapchain).handle},
		ImageIndices:   []int{info.ImageIndex},
	})
	if status, ok := toStatus(res); ok {
		return status, nil
	}
	if err != nil {
		return gpu.StatusSuccess, errors.Wrap(err, "queue present")
	}
	return gpu.StatusSuccess, nil
}

type imageView struct {
	device *device
	handle core1_0.ImageView
}

func (v *imageView) Destroy() {
	v.device.driver.DestroyImageView(v.handle, nil)
}

type framebuffer struct {
	device *device
	handle core1_0.Framebuffer
}

func (f *framebuffer) Destroy() {
	f.device.driver.DestroyFramebuffer(f.handle, nil)
}

type semaphore struct {
	device *device
	handle core1_0.Semaphore
}

func (s *semaphore) Destroy() {
	s.device.driver.DestroySemaphore(s.handle, nil)
}

type fence struct {
	device *device
	handle core1_0.Fence
}

func (f *fence) Destroy() {
	f.device.driver.DestroyFence(f.handle, nil)
}
