package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Directory resolves fungible ledgers by asset identity.
type Directory struct {
	mu     sync.RWMutex
	assets map[common.Address]Fungible
}

func NewDirectory(assets ...Fungible) *Directory {
	d := &Directory{assets: make(map[common.Address]Fungible, len(assets))}
	for _, asset := range assets {
		d.Register(asset)
	}
	return d
}

func (d *Directory) Register(asset Fungible) {
	if asset == nil {
		return
	}
	d.mu.Lock()
	d.assets[asset.Address()] = asset
	d.mu.Unlock()
}

func (d *Directory) Lookup(address common.Address) (Fungible, bool) {
	d.mu.RLock()
	asset, ok := d.assets[address]
	d.mu.RUnlock()
	return asset, ok
}
