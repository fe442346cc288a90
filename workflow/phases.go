package workflow

import "strings"

// Phase is one workflow phase with its transition-consent markers. A list
// entry "*name" requires consent to enter the phase; "name*" requires consent
// to exit it.
type Phase struct {
	Name         string
	EntryConsent bool
	ExitConsent  bool
}

// ParsePhase decodes a phase-list entry, stripping the consent markers.
func ParsePhase(entry string) Phase {
	p := Phase{Name: strings.TrimSpace(entry)}
	if strings.HasPrefix(p.Name, "*") {
		p.EntryConsent = true
		p.Name = p.Name[1:]
	}
	if strings.HasSuffix(p.Name, "*") {
		p.ExitConsent = true
		p.Name = p.Name[:len(p.Name)-1]
	}
	return p
}

// PhaseList is the ordered set of phases a project moves through.
type PhaseList []Phase

// ParsePhaseList decodes an ordered list of annotated phase names, skipping
// entries that are empty after stripping markers.
func ParsePhaseList(entries []string) PhaseList {
	list := make(PhaseList, 0, len(entries))
	for _, e := range entries {
		p := ParsePhase(e)
		if p.Name != "" {
			list = append(list, p)
		}
	}
	return list
}

// Index returns the position of the named phase, or -1.
func (pl PhaseList) Index(name string) int {
	for i, p := range pl {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Find returns the named phase.
func (pl PhaseList) Find(name string) (Phase, bool) {
	if i := pl.Index(name); i >= 0 {
		return pl[i], true
	}
	return Phase{}, false
}

// Next returns the phase following name in order.
func (pl PhaseList) Next(name string) (Phase, bool) {
	i := pl.Index(name)
	if i < 0 || i+1 >= len(pl) {
		return Phase{}, false
	}
	return pl[i+1], true
}

// NeedsConsent reports whether moving from one phase to another requires
// explicit consent: exit-consent on the source or entry-consent on the target.
func (pl PhaseList) NeedsConsent(from, to string) bool {
	if p, ok := pl.Find(from); ok && p.ExitConsent {
		return true
	}
	if p, ok := pl.Find(to); ok && p.EntryConsent {
		return true
	}
	return false
}
