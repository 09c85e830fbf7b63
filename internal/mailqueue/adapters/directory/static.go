// Package directory provides a static, in-process implementation of the
// account, object and IP-ban collaborators. Real deployments plug in
// adapters backed by their own account system; this one serves wiring,
// development and tests.
package directory

import (
	"context"
	"sync"

	"github.com/openpress/mailout/internal/mailqueue/domain"
)

type StaticDirectory struct {
	mu        sync.RWMutex
	accounts  map[int64]*domain.Account
	objects   map[string]*domain.RelatedObject
	bannedIPs map[string]bool
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		accounts:  make(map[int64]*domain.Account),
		objects:   make(map[string]*domain.RelatedObject),
		bannedIPs: make(map[string]bool),
	}
}

func (d *StaticDirectory) PutAccount(a *domain.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[a.ID] = a
}

func (d *StaticDirectory) PutObject(o *domain.RelatedObject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[o.Ref] = o
}

func (d *StaticDirectory) BanIP(ip string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bannedIPs[ip] = true
}

func (d *StaticDirectory) AccountsByID(ctx context.Context, ids []int64) (map[int64]*domain.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[int64]*domain.Account, len(ids))
	for _, id := range ids {
		if a, ok := d.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (d *StaticDirectory) ObjectsByRef(ctx context.Context, refs []string) (map[string]*domain.RelatedObject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*domain.RelatedObject, len(refs))
	for _, ref := range refs {
		if o, ok := d.objects[ref]; ok {
			out[ref] = o
		}
	}
	return out, nil
}

func (d *StaticDirectory) IsBanned(ctx context.Context, ip string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bannedIPs[ip], nil
}
