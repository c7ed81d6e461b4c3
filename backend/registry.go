package backend

import (
	"fmt"
	"sync"

	"github.com/vfsfabric/corevfs/mount"
)

// Constructor builds a Backend bound to a resolved mount Spec, the way
// rclone's fs.RegInfo.NewFs binds a remote config to an fs.Fs.
type Constructor func(spec *mount.Spec) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a protocol name -> Constructor mapping. It is meant to
// be called from an init() func in each backend package, the same
// registration pattern rclone's individual fs/Register calls use.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("backend: duplicate registration for %q", name))
	}
	registry[name] = ctor
}

// New looks up the constructor registered for spec.Type and invokes it.
func New(spec *mount.Spec) (Backend, error) {
	registryMu.RLock()
	ctor, ok := registry[spec.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend: no protocol registered for %q", spec.Type)
	}
	return ctor(spec)
}

// Registered lists every currently-registered protocol name, for
// ListMountableInfo .
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
