package model

// UnknownNationalID is stored when the source row carries a placeholder
// instead of a real national identifier.
const UnknownNationalID = "DESCONOCIDO"

// Patient is found-or-created on the first episode that references its
// national identifier.
type Patient struct {
	ID         int64
	NationalID string
	Name       *string
	Age        *int
	Sex        *string
}
