// Package prober implements the ERC-165-based standards conformance
// check: given a contract address, is it a *visual* ERC-721 or
// ERC-1155 (i.e. does it carry the metadata extension)? Results are
// memoized per address for the process lifetime, since a deployed
// contract's interface set never changes (spec.md §4.3, §9).
package prober

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Interface IDs used for standards conformance probing (spec.md §4.3).
// These are ERC-165 interface identifiers and are protocol constants,
// not implementation choices.
const (
	InterfaceIDERC721         = "0x80ac58cd"
	InterfaceIDERC721Metadata = "0x5b5e139f"
	InterfaceIDERC1155        = "0xd9b67a26"
	InterfaceIDERC1155URI     = "0x0e89341c"
)

// InterfaceSupporter checks whether a contract supports a given
// ERC-165 interface ID, mapping any call failure (revert, no
// ERC-165 support at all) to false per spec.md §4.1.
type InterfaceSupporter interface {
	SupportsInterface(ctx context.Context, address common.Address, interfaceID string) (bool, error)
}

// key identifies one memoized (address, interface) probe.
type key struct {
	address common.Address
	iface   string
}

// Prober answers the two visual-standard questions the scanner needs,
// caching every underlying SupportsInterface result.
type Prober struct {
	client InterfaceSupporter
	cache  sync.Map // key -> bool
}

// New returns a Prober backed by the given RPC facade.
func New(client InterfaceSupporter) *Prober {
	return &Prober{client: client}
}

func (p *Prober) supports(ctx context.Context, address common.Address, iface string) bool {
	k := key{address, iface}
	if v, ok := p.cache.Load(k); ok {
		return v.(bool)
	}

	ok, err := p.client.SupportsInterface(ctx, address, iface)
	if err != nil {
		ok = false
	}
	p.cache.Store(k, ok)
	return ok
}

// IsVisualErc721 reports whether address is both an ERC-721 and
// implements the ERC-721 Metadata extension (spec.md §4.3).
func (p *Prober) IsVisualErc721(ctx context.Context, address common.Address) bool {
	return p.supports(ctx, address, InterfaceIDERC721) && p.supports(ctx, address, InterfaceIDERC721Metadata)
}

// IsVisualErc1155 reports whether address is both an ERC-1155 and
// implements the ERC-1155 Metadata URI extension (spec.md §4.3).
func (p *Prober) IsVisualErc1155(ctx context.Context, address common.Address) bool {
	return p.supports(ctx, address, InterfaceIDERC1155) && p.supports(ctx, address, InterfaceIDERC1155URI)
}
