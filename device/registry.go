package device

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// A Factory creates a Backend instance.
type Factory func() (Backend, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. Backend packages call it
// from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// OpenBackend instantiates the backend registered under name.
func OpenBackend(name string) (Backend, error) {
	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownBackend, name, strings.Join(Backends(), ", "))
	}
	return factory()
}

// Backends returns the sorted list of registered backend names.
func Backends() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select filters out blacklisted devices, picks a primary device and returns
// up to maxDevices-1 secondaries. The primary is the first device whose name
// contains forcePrimary or, if forcePrimary is empty, the fastest device. A
// maxDevices value <= 0 selects all remaining devices.
func Select(infos []Info, blacklist []string, forcePrimary string, maxDevices int) (Info, []Info, error) {
	candidates := make([]Info, 0, len(infos))
	for _, info := range infos {
		keep := true
		for _, text := range blacklist {
			if text != "" && strings.Contains(info.Name, text) {
				keep = false
				break
			}
		}
		if keep {
			candidates = append(candidates, info)
		}
	}

	if len(candidates) == 0 {
		return Info{}, nil, ErrNoDevices
	}

	primaryIndex := -1
	if forcePrimary != "" {
		for index, info := range candidates {
			if strings.Contains(info.Name, forcePrimary) {
				primaryIndex = index
				break
			}
		}
		if primaryIndex == -1 {
			return Info{}, nil, fmt.Errorf("device: no device matches forced primary %q", forcePrimary)
		}
	} else {
		primaryIndex = 0
		for index, info := range candidates {
			if info.Speed > candidates[primaryIndex].Speed {
				primaryIndex = index
			}
		}
	}

	primary := candidates[primaryIndex]
	secondaries := make([]Info, 0, len(candidates)-1)
	for index, info := range candidates {
		if index == primaryIndex {
			continue
		}
		if maxDevices > 0 && len(secondaries) >= maxDevices-1 {
			break
		}
		secondaries = append(secondaries, info)
	}

	return primary, secondaries, nil
}
