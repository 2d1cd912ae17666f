package db

import (
	"sort"
	"strings"
	"sync"
)

// Attachments is the set of sibling databases currently attached inside one
// handle's session. It only mirrors engine state; it never issues commands.
type Attachments struct {
	owner string
	mu    sync.RWMutex
	names map[string]struct{}
}

func newAttachments(owner string) *Attachments {
	return &Attachments{
		owner: owner,
		names: make(map[string]struct{}),
	}
}

// Add records name as attached. It reports whether the set changed; the
// owner itself is never recorded.
func (a *Attachments) Add(name string) bool {
	name = strings.ToLower(name)
	if name == "" || name == a.owner {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.names[name]; ok {
		return false
	}
	a.names[name] = struct{}{}
	return true
}

// Remove forgets name. Removing an absent name is a no-op.
func (a *Attachments) Remove(name string) bool {
	name = strings.ToLower(name)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.names[name]; !ok {
		return false
	}
	delete(a.names, name)
	return true
}

func (a *Attachments) Contains(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.names[strings.ToLower(name)]
	return ok
}

// Names returns a sorted copy of the set.
func (a *Attachments) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.names))
	for name := range a.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
