package cache

import "fmt"

// DeviceID is the position of a device in its Tree.
type DeviceID int32

// NoDevice is the parent of a root device. A root stands for main memory:
// its misses are not forwarded anywhere.
const NoDevice DeviceID = -1

// A Tree owns every device of one hierarchy. Devices refer to each other by
// DeviceID, never by pointer.
type Tree struct {
	devices []*Device
	byName  map[string]DeviceID
}

// NewTree creates an empty hierarchy.
func NewTree() *Tree {
	return &Tree{byName: make(map[string]DeviceID)}
}

// Len returns the number of devices.
func (t *Tree) Len() int {
	return len(t.devices)
}

// Device returns the device with the given ID. It panics on an ID that was
// not issued by this tree.
func (t *Tree) Device(id DeviceID) *Device {
	return t.devices[id]
}

// Lookup finds a device by name.
func (t *Tree) Lookup(name string) (*Device, error) {
	id, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownDevice)
	}

	return t.devices[id], nil
}

// Devices returns all devices in build order.
func (t *Tree) Devices() []*Device {
	return t.devices
}

// Roots returns the devices without a parent.
func (t *Tree) Roots() []*Device {
	var roots []*Device

	for _, d := range t.devices {
		if d.parent == NoDevice {
			roots = append(roots, d)
		}
	}

	return roots
}

func (t *Tree) add(d *Device) error {
	if _, dup := t.byName[d.name]; dup {
		return fmt.Errorf("%q: %w", d.name, ErrDuplicateName)
	}

	d.id = DeviceID(len(t.devices))
	t.devices = append(t.devices, d)
	t.byName[d.name] = d.id

	return nil
}
