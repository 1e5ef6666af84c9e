package query

import "fmt"

// aioFormats are the save formats USE_AIO is willing to hand to
// aio_save(...) instead of save(...). "(...)"-shaped binary type lists are
// matched by hasBinaryTypeList below, not listed here literally.
var aioFormats = map[string]bool{
	"csv+":  true,
	"lcsv+": true,
	"arrow": true,
}

// isBinarySave reports whether a save format string denotes binary output:
// either a parenthesized type list like "(int64,string)" or the literal
// "arrow" format.
func isBinarySave(save string) bool {
	return (len(save) > 0 && save[0] == '(') || save == "arrow"
}

// rewriteQuery wraps query in a save(...) or aio_save(...) call targeting
// target, returning the rewritten text and whether the save is binary.
// useAIO and instanceID come from the store's global configuration; save
// is the raw, unparsed value of the save parameter.
func rewriteQuery(query, save, target string, instanceID int, useAIO bool) (string, bool) {
	binary := isBinarySave(save)

	if useAIO && (hasBinaryTypeList(save) || aioFormats[save]) {
		return fmt.Sprintf("aio_save(%s,'path=%s','instance=%d','format=%s')",
			query, target, instanceID, save), binary
	}

	return fmt.Sprintf("save(%s,'%s',%d,'%s')", query, target, instanceID, save), binary
}

// hasBinaryTypeList reports whether save looks like a parenthesized type
// list, e.g. "(int64,string)", which is the other shape USE_AIO accepts
// alongside the literal format names in aioFormats.
func hasBinaryTypeList(save string) bool {
	return len(save) > 0 && save[0] == '('
}

// splitPrefix splits a prefix statement list literally on ';', with no
// quoting awareness. A statement containing a literal ';' inside a string
// constant will be split incorrectly; this is intentional, not a bug to
// fix. Empty fragments (from leading/trailing/doubled semicolons) are
// dropped.
func splitPrefix(prefix string) []string {
	var stmts []string
	start := 0
	for i := 0; i < len(prefix); i++ {
		if prefix[i] == ';' {
			if frag := prefix[start:i]; frag != "" {
				stmts = append(stmts, frag)
			}
			start = i + 1
		}
	}
	if frag := prefix[start:]; frag != "" {
		stmts = append(stmts, frag)
	}
	return stmts
}
