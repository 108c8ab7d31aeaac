// Package gputest is an in-memory gpu backend for tests.
//
// It models just enough of the GPU timeline to catch synchronization mistakes.
// Submissions complete lazily: nothing finishes until a fence wait, WaitIdle, or
// Complete forces it, so any missing wait shows up as a recorded violation.
package gputest

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkpresent/presenter/gpu"
)

// Object kinds, as used in events and with FailOn.
const (
	KindSwapchain      = "Swapchain"
	KindImageView      = "ImageView"
	KindRenderPass     = "RenderPass"
	KindShaderModule   = "ShaderModule"
	KindPipelineLayout = "PipelineLayout"
	KindPipeline       = "Pipeline"
	KindFramebuffer    = "Framebuffer"
	KindCommandPool    = "CommandPool"
	KindCommandBuffer  = "CommandBuffer"
	KindSemaphore      = "Semaphore"
	KindFence          = "Fence"
	KindDevice         = "Device"

	// KindWait counts WaitForFences calls, so FailOn(KindWait, n, err) fails the
	// n-th wait from now. Waits are not objects and never appear in Events.
	KindWait = "Wait"
)

// ErrNeverSignaled is returned when waiting on a fence nothing will ever signal.
var ErrNeverSignaled = errors.New("gputest: fence has no pending submission")

type Event struct {
	Op   string
	Kind string
	ID   int
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s#%d", e.Op, e.Kind, e.ID)
}

// Submission is one recorded queue submit.
type Submission struct {
	Seq    int
	Family int
	// Image is the swapchain image the submission renders to, or -1.
	Image int
	Fence *Fence

	done    bool
	buffers []*CommandBuffer
}

func (s *Submission) Done() bool {
	return s.done
}

type fault struct {
	at  int
	err error
}

// Device implements gpu.Device. Exported fields configure behavior and must be set
// before the device is used; the rest record what happened.
type Device struct {
	Info gpu.DeviceCreateInfo

	// AcquireOrder is the repeating sequence of image indices handed out by
	// AcquireNextImage. Empty means round-robin.
	AcquireOrder []int
	// AcquireStatuses[n] is the status of the n-th acquire. Missing entries are Success.
	AcquireStatuses []gpu.Status
	AcquireErr      error
	PresentStatuses []gpu.Status
	SubmitErr       error
	PresentErr      error
	WaitErr         error
	EndErr          error
	WaitIdleErr     error

	Events      []Event
	Violations  []string
	Submissions []*Submission
	Acquired    []int
	Presented   []int
	// FenceWaits lists every fence passed to WaitForFences, in order.
	FenceWaits []*Fence
	// WaitTimeouts and AcquireTimeouts record the timeout of every fence wait
	// and every acquire.
	WaitTimeouts    []time.Duration
	AcquireTimeouts []time.Duration
	MaxPending int

	Swapchains []gpu.SwapchainCreateInfo
	Pipelines  []gpu.GraphicsPipelineCreateInfo

	nextID    int
	live      map[*object]struct{}
	faults    map[string]fault
	created   map[string]int
	queues    map[int]*Queue
	pending   []*Submission
	destroyed bool
}

func NewDevice() *Device {
	return &Device{
		live:    make(map[*object]struct{}),
		faults:  make(map[string]fault),
		created: make(map[string]int),
		queues:  make(map[int]*Queue),
	}
}

// FailOn makes the n-th (zero-based) creation of kind from now on fail with err.
func (d *Device) FailOn(kind string, n int, err error) {
	d.faults[kind] = fault{at: d.created[kind] + n, err: err}
}

// Live returns the number of objects created on the device and not yet destroyed.
func (d *Device) Live() int {
	return len(d.live)
}

func (d *Device) Pending() int {
	return len(d.pending)
}

func (d *Device) Destroyed() bool {
	return d.destroyed
}

// DestroyOrder returns the kinds of destroyed objects in the order they went away.
func (d *Device) DestroyOrder() []string {
	var kinds []string
	for _, e := range d.Events {
		if e.Op == "destroy" {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// Complete finishes every pending submission.
func (d *Device) Complete() {
	if len(d.pending) > 0 {
		d.completeThrough(d.pending[len(d.pending)-1])
	}
}

func (d *Device) violate(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) newObject(kind string, refs ...*object) (*object, error) {
	n := d.created[kind]
	d.created[kind]++
	if f, ok := d.faults[kind]; ok && f.at == n {
		return nil, f.err
	}

	d.nextID++
	o := &object{dev: d, kind: kind, id: d.nextID, refs: refs}
	for _, r := range refs {
		r.dependents++
	}
	d.live[o] = struct{}{}
	d.Events = append(d.Events, Event{Op: "create", Kind: kind, ID: o.id})
	return o, nil
}

func (d *Device) completeThrough(s *Submission) {
	for len(d.pending) > 0 {
		next := d.pending[0]
		d.pending = d.pending[1:]
		next.done = true
		if next.Fence != nil {
			next.Fence.signaled = true
			next.Fence.pending = nil
		}
		for _, cb := range next.buffers {
			cb.inUse = false
		}
		if next == s {
			return
		}
	}
}

func (d *Device) Queue(family int) gpu.Queue {
	q, ok := d.queues[family]
	if !ok {
		q = &Queue{dev: d, family: family}
		d.queues[family] = q
	}
	return q
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	o, err := d.newObject(KindSwapchain)
	if err != nil {
		return nil, err
	}
	d.Swapchains = append(d.Swapchains, info)

	sc := &Swapchain{object: o, Info: info}
	for i := 0; i < info.ImageCount; i++ {
		sc.images = append(sc.images, &Image{Index: i, swapchain: sc})
	}
	return sc, nil
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	img := image.(*Image)
	o, err := d.newObject(KindImageView, img.swapchain.object)
	if err != nil {
		return nil, err
	}
	return &ImageView{object: o, Image: img, Format: format}, nil
}

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	o, err := d.newObject(KindRenderPass)
	if err != nil {
		return nil, err
	}
	return &RenderPass{object: o, Info: info}, nil
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	o, err := d.newObject(KindShaderModule)
	if err != nil {
		return nil, err
	}
	return &ShaderModule{object: o, Code: code}, nil
}

func (d *Device) CreatePipelineLayout() (gpu.PipelineLayout, error) {
	o, err := d.newObject(KindPipelineLayout)
	if err != nil {
		return nil, err
	}
	return &PipelineLayout{object: o}, nil
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	for _, m := range []gpu.ShaderModule{info.VertexShader, info.FragmentShader} {
		if m == nil || m.(*ShaderModule).destroyed {
			d.violate("pipeline linked with a missing shader module")
		}
	}
	o, err := d.newObject(KindPipeline, info.Layout.(*PipelineLayout).object, info.RenderPass.(*RenderPass).object)
	if err != nil {
		return nil, err
	}
	d.Pipelines = append(d.Pipelines, info)
	return &Pipeline{object: o, Info: info}, nil
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	view := info.View.(*ImageView)
	o, err := d.newObject(KindFramebuffer, view.object, info.RenderPass.(*RenderPass).object)
	if err != nil {
		return nil, err
	}
	return &Framebuffer{object: o, View: view, Extent: info.Extent}, nil
}

func (d *Device) CreateCommandPool(family int) (gpu.CommandPool, error) {
	o, err := d.newObject(KindCommandPool)
	if err != nil {
		return nil, err
	}
	return &CommandPool{object: o, Family: family}, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	o, err := d.newObject(KindSemaphore)
	if err != nil {
		return nil, err
	}
	return &Semaphore{object: o}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	o, err := d.newObject(KindFence)
	if err != nil {
		return nil, err
	}
	return &Fence{object: o, signaled: signaled}, nil
}

func (d *Device) WaitForFences(timeout time.Duration, fences ...gpu.Fence) error {
	for _, f := range fences {
		d.FenceWaits = append(d.FenceWaits, f.(*Fence))
	}
	d.WaitTimeouts = append(d.WaitTimeouts, timeout)
	if d.WaitErr != nil {
		return d.WaitErr
	}
	n := d.created[KindWait]
	d.created[KindWait]++
	if f, ok := d.faults[KindWait]; ok && f.at == n {
		return f.err
	}

	for _, f := range fences {
		fence := f.(*Fence)
		if fence.signaled {
			continue
		}
		if fence.pending == nil {
			return errors.Wrapf(ErrNeverSignaled, "wait on Fence#%d", fence.id)
		}
		d.completeThrough(fence.pending)
	}
	return nil
}

func (d *Device) ResetFences(fences ...gpu.Fence) error {
	for _, f := range fences {
		fence := f.(*Fence)
		if fence.pending != nil {
			d.violate("Fence#%d reset while its submission is pending", fence.id)
		}
		fence.signaled = false
	}
	return nil
}

func (d *Device) WaitIdle() error {
	d.Complete()
	return d.WaitIdleErr
}

func (d *Device) Destroy() {
	if d.destroyed {
		d.violate("device destroyed twice")
		return
	}
	if len(d.pending) > 0 {
		d.violate("device destroyed with %d pending submissions", len(d.pending))
	}
	if len(d.live) > 0 {
		d.violate("device destroyed with %d live objects", len(d.live))
	}
	d.destroyed = true
	d.Events = append(d.Events, Event{Op: "destroy", Kind: KindDevice})
}

type object struct {
	dev        *Device
	kind       string
	id         int
	destroyed  bool
	dependents int
	refs       []*object
}

func (o *object) ID() int {
	return o.id
}

func (o *object) Destroyed() bool {
	return o.destroyed
}

func (o *object) Destroy() {
	d := o.dev
	if o.destroyed {
		d.violate("%s#%d destroyed twice", o.kind, o.id)
		return
	}
	if o.dependents > 0 {
		d.violate("%s#%d destroyed with %d live dependents", o.kind, o.id, o.dependents)
	}
	o.destroyed = true
	for _, r := range o.refs {
		r.dependents--
	}
	delete(d.live, o)
	d.Events = append(d.Events, Event{Op: "destroy", Kind: o.kind, ID: o.id})
}
