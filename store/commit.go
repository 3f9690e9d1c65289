package store

import "sync"

// CommitGuard implements the source's "with database: no-commit" scoped
// block (spec §5 "Locking of shared tables", spec §9's scoped-commit
// guard): callers batch several store mutations behind a single commit at
// scope exit. Nested scopes are counted; only the outermost commits
// (spec §5 "Commit coalescing").
type CommitGuard struct {
	mu     sync.Mutex
	depth  int
	ignore bool
}

// Enter begins a scope, incrementing the nesting depth.
func (g *CommitGuard) Enter() {
	g.mu.Lock()
	g.depth++
	g.mu.Unlock()
}

// IgnoreCommits marks the current (innermost) scope chain so that, when
// the outermost Exit runs, commit is skipped and pending mutations are
// discarded rather than flushed. This is the source's thrown
// "ignore-commits" condition (spec §9).
func (g *CommitGuard) IgnoreCommits() {
	g.mu.Lock()
	g.ignore = true
	g.mu.Unlock()
}

// Exit ends one scope level. At depth 0 it invokes commit unless
// IgnoreCommits was called anywhere within this scope's lifetime. The
// caller is responsible for invoking Exit via defer so a panic inside the
// guarded scope unwinds through it without running commit, matching spec
// §9's "panics in the guarded scope must propagate and drop pending
// commits".
func (g *CommitGuard) Exit(commit func() error) error {
	if r := recover(); r != nil {
		g.mu.Lock()
		g.depth--
		if g.depth == 0 {
			g.ignore = false
		}
		g.mu.Unlock()
		panic(r)
	}
	g.mu.Lock()
	g.depth--
	outermost := g.depth == 0
	ignore := g.ignore
	if outermost {
		g.ignore = false
	}
	g.mu.Unlock()

	if !outermost || ignore {
		return nil
	}
	return commit()
}

// Depth reports the current nesting level, for tests and diagnostics.
func (g *CommitGuard) Depth() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth
}
