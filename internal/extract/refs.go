// Package extract implements the two purely regex-driven stages:
// cross-reference detection and deadline/dollar-amount obligation
// extraction over statutory text.
package extract

import (
	"regexp"
	"strings"

	"github.com/bbiangul/legalpipe/internal/types"
)

// refPatterns covers the citation forms that appear in statutory text,
// including the bare "§" citation mark.
var refPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsection\s+([\w.-]+)`),
	regexp.MustCompile(`(?i)\barticle\s+([\w.-]+)`),
	regexp.MustCompile(`(?i)\bchapter\s+([\w.-]+)`),
	regexp.MustCompile(`(?i)\btitle\s+([\w.-]+)`),
	regexp.MustCompile(`§\s*([\w.-]+)`),
	regexp.MustCompile(`\((?:see|ref\.?)\s+([\w.-]+)\)`),
}

// ExtractReferences scans a section's plain text for cross-reference
// citations and returns one CrossReference per match whose resolved
// target differs from the section's own id (self-references are
// dropped). The matched substring, less any trailing sentence period, is
// kept as RawCite; repeated matches of the same citation within one
// section are collapsed to one reference.
func ExtractReferences(section types.Section) []types.CrossReference {
	seen := make(map[string]bool)
	var refs []types.CrossReference

	for _, re := range refPatterns {
		for _, m := range re.FindAllStringSubmatch(section.TextPlain, -1) {
			if len(m) < 2 {
				continue
			}
			target := resolveTarget(section.ID, strings.TrimRight(m[1], "."))
			if target == "" || target == section.ID {
				continue
			}
			rawCite := strings.TrimRight(strings.TrimSpace(m[0]), ".")
			key := rawCite + "\x00" + target
			if seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, types.CrossReference{
				Jurisdiction: section.Jurisdiction,
				FromID:       section.ID,
				ToID:         target,
				RawCite:      rawCite,
			})
		}
	}
	return refs
}

// resolveTarget builds a target section id from a bare citation label
// (e.g. "12-3") by borrowing fromID's dash-delimited prefix, the same
// convention the section ids themselves use (e.g. "x-1-1"). A label that
// already looks like a fully-qualified id (contains a letter prefix of
// its own) is used as-is.
func resolveTarget(fromID, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	if strings.Contains(label, "-") {
		return label
	}
	idx := strings.LastIndex(fromID, "-")
	if idx < 0 {
		return label
	}
	return fromID[:idx] + "-" + label
}
