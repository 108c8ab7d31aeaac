// Package gpu is the backend-neutral surface of the graphics API the engine drives.
//
// A backend (see package vkng) implements these interfaces on top of a real driver;
// package gputest implements them in memory. Handles returned by a backend may only be
// passed back to the same backend.
package gpu

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Instance is an initialized API instance already bound to one presentation surface.
type Instance interface {
	Adapters() ([]Adapter, error)
	Destroy()
}

// Adapter is one physical device as seen from the instance's surface.
type Adapter interface {
	Name() string
	QueueFamilies() ([]QueueFamily, error)
	Extensions() (map[string]struct{}, error)
	SurfaceSupport() (SurfaceSupport, error)
	CreateDevice(info DeviceCreateInfo) (Device, error)
}

type DeviceCreateInfo struct {
	// QueueFamilies lists each family that needs a queue, without duplicates.
	QueueFamilies []int
	Extensions    []string
	Layers        []string
}

type Device interface {
	Queue(family int) Queue

	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	CreateImageView(image Image, format Format) (ImageView, error)
	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	CreateShaderModule(code []uint32) (ShaderModule, error)
	CreatePipelineLayout() (PipelineLayout, error)
	CreateGraphicsPipeline(info GraphicsPipelineCreateInfo) (Pipeline, error)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	CreateCommandPool(family int) (CommandPool, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)

	// WaitForFences blocks until every fence is signaled or the timeout passes.
	WaitForFences(timeout time.Duration, fences ...Fence) error
	ResetFences(fences ...Fence) error
	WaitIdle() error

	Destroy()
}

type Queue interface {
	Submit(info SubmitInfo, fence Fence) error
	Present(info PresentInfo) (Status, error)
}

type SwapchainCreateInfo struct {
	ImageCount    int
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
	Sharing       SharingMode
	QueueFamilies []int
}

type Swapchain interface {
	Images() ([]Image, error)
	// AcquireNextImage returns the index of the next presentable image. The
	// semaphore is signaled once the image may be written to.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (int, Status, error)
	Destroy()
}

// Image is owned by its swapchain and is never destroyed directly.
type Image interface{}

type ImageView interface {
	Destroy()
}

type RenderPassCreateInfo struct {
	ColorFormat Format
}

type RenderPass interface {
	Destroy()
}

type ShaderModule interface {
	Destroy()
}

type PipelineLayout interface {
	Destroy()
}

type GraphicsPipelineCreateInfo struct {
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	Layout         PipelineLayout
	RenderPass     RenderPass
	Extent         Extent2D
}

type Pipeline interface {
	Destroy()
}

type FramebufferCreateInfo struct {
	RenderPass RenderPass
	View       ImageView
	Extent     Extent2D
}

type Framebuffer interface {
	Destroy()
}

type CommandPool interface {
	Allocate(count int) ([]CommandBuffer, error)
	// Destroy frees every command buffer allocated from the pool.
	Destroy()
}

type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  mgl32.Vec4
}

type CommandBuffer interface {
	Reset() error
	Begin() error
	BeginRenderPass(info RenderPassBeginInfo) error
	BindPipeline(pipeline Pipeline)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance int)
	EndRenderPass()
	End() error
}

// SubmitInfo describes one batch. WaitSemaphores are waited on at the
// color-attachment-output stage.
type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     int
}

type Semaphore interface {
	Destroy()
}

type Fence interface {
	Destroy()
}
