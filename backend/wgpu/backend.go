// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/ggshader"
	"github.com/gogpu/ggshader/backend"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func init() {
	backend.Register(backend.BackendWGPU, func() backend.ShaderBackend {
		return NewBackend()
	})
}

// Backend is the "wgpu" registry entry. Init opens a standalone device on
// the first discrete or integrated adapter of the Vulkan HAL backend.
type Backend struct {
	opts []Option

	// newInstance creates the HAL instance; Init uses Vulkan when nil.
	newInstance func() (hal.Instance, error)

	instance hal.Instance
	hdev     hal.Device
	dev      *Device
}

// NewBackend creates an uninitialized backend. opts apply to the device
// created by Init.
func NewBackend(opts ...Option) *Backend {
	return &Backend{opts: opts}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendWGPU }

func vulkanInstance() (hal.Instance, error) {
	hb, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errors.New("vulkan backend not available")
	}
	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return instance, nil
}

// Init opens the device. Calling Init on an initialized backend is a
// no-op.
func (b *Backend) Init() error {
	if b.dev != nil {
		return nil
	}
	newInstance := b.newInstance
	if newInstance == nil {
		newInstance = vulkanInstance
	}
	instance, err := newInstance()
	if err != nil {
		return fmt.Errorf("wgpu: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return errors.New("wgpu: no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("wgpu: open device: %w", err)
	}
	b.instance = instance
	b.hdev = openDev.Device
	b.dev = New(openDev.Device, openDev.Queue, b.opts...)
	ggshader.Logger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return nil
}

// Close releases the programs, the device and the instance.
func (b *Backend) Close() {
	if b.dev != nil {
		b.dev.Close()
		b.dev = nil
	}
	if b.hdev != nil {
		b.hdev.Destroy()
		b.hdev = nil
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}

// Device returns the device, nil before Init.
func (b *Backend) Device() ggshader.Device {
	if b.dev == nil {
		return nil
	}
	return b.dev
}

// WGPU returns the concrete device, nil before Init.
func (b *Backend) WGPU() *Device { return b.dev }
