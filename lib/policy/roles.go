package liboralynxpolicy

import (
	"sort"
	"sync"

	"github.com/ldsec/oralynx/lib"
)

// RoleAuthority answers whether a principal may submit or administer.
type RoleAuthority interface {
	IsProvider(id liboralynx.Identity) bool
	IsOwner(id liboralynx.Identity) bool
}

// Roles is an in-memory role authority with a single owner and a set of providers.
type Roles struct {
	mutex     sync.RWMutex
	owner     liboralynx.Identity
	providers map[liboralynx.Identity]bool
}

// NewRoles creates the role set.
func NewRoles(owner liboralynx.Identity, providers ...liboralynx.Identity) *Roles {
	r := &Roles{owner: owner, providers: make(map[liboralynx.Identity]bool)}
	for _, p := range providers {
		r.providers[p] = true
	}
	return r
}

// IsProvider implements RoleAuthority.
func (r *Roles) IsProvider(id liboralynx.Identity) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.providers[id]
}

// IsOwner implements RoleAuthority.
func (r *Roles) IsOwner(id liboralynx.Identity) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return !id.IsZero() && id == r.owner
}

// Owner returns the current owner.
func (r *Roles) Owner() liboralynx.Identity {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.owner
}

// Grant registers a provider. It returns false if it already was one.
func (r *Roles) Grant(id liboralynx.Identity) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.providers[id] {
		return false
	}
	r.providers[id] = true
	return true
}

// Revoke unregisters a provider. It returns false if it was not one.
func (r *Roles) Revoke(id liboralynx.Identity) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if !r.providers[id] {
		return false
	}
	delete(r.providers, id)
	return true
}

// TransferOwnership replaces the owner and returns the previous one.
func (r *Roles) TransferOwnership(id liboralynx.Identity) liboralynx.Identity {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	previous := r.owner
	r.owner = id
	return previous
}

// Providers returns the registered providers, sorted.
func (r *Roles) Providers() []liboralynx.Identity {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	list := make([]liboralynx.Identity, 0, len(r.providers))
	for p := range r.providers {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}
