// Package session tracks the wallet session generation. Flows capture a Token
// at entry and check it after every call that can suspend.
package session

import (
	"sync/atomic"

	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
)

// Token is the generation observed by a flow.
type Token uint64

// Guard owns the generation counter. Only the network synchronizer bumps it.
type Guard struct {
	gen atomic.Uint64
}

func NewGuard() *Guard { return &Guard{} }

func (g *Guard) Current() Token { return Token(g.gen.Load()) }

func (g *Guard) IsCurrent(t Token) bool { return g.Current() == t }

// Bump invalidates every outstanding token and returns the new one.
func (g *Guard) Bump() Token { return Token(g.gen.Add(1)) }

// Check returns a superseded error when t is stale.
func (g *Guard) Check(t Token) error {
	if g.IsCurrent(t) {
		return nil
	}
	return ErrSuperseded()
}

// ErrSuperseded is the error flows return when abandoned. Callers drop it
// without output.
func ErrSuperseded() error {
	return clierr.New(clierr.CodeSuperseded, "operation superseded by a wallet change")
}

// IsSuperseded reports whether err came from a stale session.
func IsSuperseded(err error) bool {
	return clierr.HasCode(err, clierr.CodeSuperseded)
}
