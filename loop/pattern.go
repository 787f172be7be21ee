package loop

import (
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
)

// link classifies how a loop's exit block reaches its entry,
// mirroring original_source/src/analyze/lcore_loop_pattern.c's
// BlockLink enum.
type link int

const (
	linkNone link = iota
	linkDirect
	linkConditional
)

// linkType reports how from's last instruction reaches to: a direct
// jump, a conditional jump, or neither (fallthrough, indirect, or no
// relation at all).
func linkType(from, to *core.Block) link {
	if from.NumInsts() == 0 {
		return linkNone
	}
	last := from.Func.File.Seq.At(from.End - 1)
	ann := last.Annotations()
	if !ann.Has(asm.JUMP) {
		return linkNone
	}
	target, ok := last.Branch()
	if !ok {
		return linkNone
	}
	ti := from.Func.File.Seq.IndexOf(target)
	if ti < to.Start || ti >= to.End {
		return linkNone
	}
	if ann.Has(asm.CONDITIONAL) {
		return linkConditional
	}
	return linkDirect
}

// Classify sets l.Pattern per §4.11: a single-entry loop whose sole
// exit falls through past the entry (no direct link) is a while; one
// whose exit jumps back to the entry is a repeat; a single-entry loop
// with multiple exits, all of which jump back to the entry, is a
// multi-repeat. Anything else is left unclassified.
func Classify(l *core.Loop) {
	l.Pattern = core.PatternUnclassified

	switch {
	case len(l.Exits) == 1 && len(l.Entries) == 1:
		exit, entry := l.Exits[0], l.Entries[0]
		lnk := linkType(exit, entry)
		if exit == entry && lnk == linkNone {
			l.Pattern = core.PatternWhile
			return
		}
		if lnk == linkConditional || lnk == linkDirect {
			l.Pattern = core.PatternRepeat
		}

	case len(l.Exits) > 1 && len(l.Entries) == 1:
		entry := l.Entries[0]
		for _, exit := range l.Exits {
			lnk := linkType(exit, entry)
			if lnk != linkConditional && lnk != linkDirect {
				return
			}
		}
		l.Pattern = core.PatternMultiRepeat
	}
}

// ClassifyAll classifies every loop of fn.
func ClassifyAll(fn *core.Function) {
	for _, l := range fn.Loops {
		Classify(l)
	}
}
