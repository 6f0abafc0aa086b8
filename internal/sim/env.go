package sim

import (
	"github.com/ethereum/go-ethereum/common"
)

// Env wires a chain, router and pool around one custody account.
type Env struct {
	Chain  *Chain
	Router *Router
	Pool   *Pool
}

func NewEnv(custody, router, pool common.Address) *Env {
	chain := NewChain(custody)
	return &Env{
		Chain:  chain,
		Router: NewRouter(chain, router),
		Pool:   NewPool(chain, pool),
	}
}
