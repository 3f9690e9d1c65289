package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExchangeResolveInvokesHandlerOnce(t *testing.T) {
	e := NewExchange()
	results := make(chan bool, 1)

	id := e.Request([]byte("request"), func(request, response []byte, modified bool) {
		results <- modified
	})

	e.Resolve(id, []byte("request"))
	select {
	case modified := <-results:
		require.False(t, modified)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	// A second resolve for the same (now-consumed) identifier is ignored.
	e.Resolve(id, []byte("request"))
	select {
	case <-results:
		t.Fatal("handler invoked twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestExchangeResolveDetectsModification(t *testing.T) {
	e := NewExchange()
	results := make(chan bool, 1)

	id := e.Request([]byte("original"), func(request, response []byte, modified bool) {
		results <- modified
	})
	e.Resolve(id, []byte("changed"))

	select {
	case modified := <-results:
		require.True(t, modified)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestExchangeUnknownIdentifierIgnored(t *testing.T) {
	e := NewExchange()
	e.Resolve(999, []byte("anything")) // must not panic
}
