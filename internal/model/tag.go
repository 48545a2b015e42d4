package model

import "fmt"

// Tag is the length-of-stay classification of an episode against its
// code's cut-offs.
type Tag string

const (
	TagInlier          Tag = "inlier"
	TagOutlierInferior Tag = "outlier_inferior"
	TagOutlierSuperior Tag = "outlier_superior"
)

// IsOutlier reports whether the tag falls outside the inlier band on either side.
func (t Tag) IsOutlier() bool {
	return t == TagOutlierInferior || t == TagOutlierSuperior
}

// ParseTag accepts the stored tag names.
func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case TagInlier, TagOutlierInferior, TagOutlierSuperior:
		return Tag(s), nil
	}
	return "", fmt.Errorf("unknown classification tag %q", s)
}
