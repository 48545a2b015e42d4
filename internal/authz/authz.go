package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical role names.
const (
	RoleAdmin      = "admin"
	RoleFinance    = "finance"
	RoleManagement = "management"
)

// roleAliases maps folded role names used by upstream systems to the
// canonical ones.
var roleAliases = map[string]string{
	"admin":         RoleAdmin,
	"administrador": RoleAdmin,
	"finance":       RoleFinance,
	"finanzas":      RoleFinance,
	"management":    RoleManagement,
	"gestion":       RoleManagement,
}

// ErrForbidden matches every *ForbiddenError via errors.Is.
var ErrForbidden = errors.New("forbidden")

// ForbiddenError rejects a whole update request.
type ForbiddenError struct {
	Role      string
	Partition Partition // empty for a generic denial
	Reason    string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldRole lower-cases role, strips diacritics and collapses whitespace,
// then resolves known aliases. Unknown roles are returned folded.
func FoldRole(role string) string {
	s, _, err := transform.String(stripMarks, role)
	if err != nil {
		s = role
	}
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	if canonical, ok := roleAliases[s]; ok {
		return canonical
	}
	return s
}

// Authorize decides whether role may write all of fields. Admin may write
// anything. Otherwise finance fields require the finance role, management
// fields the management role, and a request touching both is refused.
// Unrestricted fields need a role that owns some partition.
func Authorize(role string, fields []string) error {
	r := FoldRole(role)
	if r == RoleAdmin {
		return nil
	}

	var finance, management, unrestricted []string
	for _, f := range fields {
		switch p, _ := PartitionOf(f); p {
		case PartitionFinance:
			finance = append(finance, f)
		case PartitionManagement:
			management = append(management, f)
		case PartitionUnrestricted:
			unrestricted = append(unrestricted, f)
		}
	}

	switch {
	case len(finance) > 0 && len(management) > 0:
		return &ForbiddenError{
			Role:      r,
			Partition: PartitionFinance + "+" + PartitionManagement,
			Reason: fmt.Sprintf("request mixes finance fields (%s) and management fields (%s); only admin may update both",
				joinSorted(finance), joinSorted(management)),
		}
	case len(finance) > 0 && r != RoleFinance:
		return &ForbiddenError{
			Role:      r,
			Partition: PartitionFinance,
			Reason:    fmt.Sprintf("role %q may not update finance fields (%s)", r, joinSorted(finance)),
		}
	case len(management) > 0 && r != RoleManagement:
		return &ForbiddenError{
			Role:      r,
			Partition: PartitionManagement,
			Reason:    fmt.Sprintf("role %q may not update management fields (%s)", r, joinSorted(management)),
		}
	case len(finance) == 0 && len(management) == 0:
		if len(unrestricted) > 0 && (r == RoleFinance || r == RoleManagement) {
			return nil
		}
		return &ForbiddenError{
			Role:   r,
			Reason: fmt.Sprintf("role %q has no updatable fields in this request", r),
		}
	}
	return nil
}

func joinSorted(fields []string) string {
	out := append([]string(nil), fields...)
	sort.Strings(out)
	return strings.Join(out, ", ")
}
