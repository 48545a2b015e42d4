package authz

// Partition names a set of episode fields owned by one role.
type Partition string

const (
	PartitionFinance      Partition = "finance"
	PartitionManagement   Partition = "management"
	PartitionUnrestricted Partition = "unrestricted"
)

// Episode field tokens as they appear in update requests and Episode JSON.
const (
	FieldID           = "id"
	FieldEpisode      = "episodio"
	FieldFacility     = "centro"
	FieldNationalID   = "rut"
	FieldName         = "nombre"
	FieldAge          = "edad"
	FieldSex          = "sexo"
	FieldCode         = "grd"
	FieldWeight       = "pesoGrd"
	FieldAdmission    = "fechaIngreso"
	FieldDischarge    = "fechaAlta"
	FieldLengthOfStay = "diasEstada"
	FieldDiagnosis    = "diagnostico"
	FieldInsurer      = "prevision"
	FieldService      = "servicio"
	FieldBatchID      = "loteId"
	FieldCreatedAt    = "creadoEn"
	FieldUpdatedAt    = "actualizadoEn"

	FieldTag              = "inlierOutlier"
	FieldTechnology       = "at"
	FieldTechnologyDetail = "atDetalle"
	FieldTechnologyAmount = "montoAT"
	FieldNewbornStatus    = "estadoRN"
	FieldNewbornAmount    = "montoRN"
	FieldRescueDelayDays  = "diasDemoraRescate"
	FieldDemoraRescate    = "pagoDemoraRescate"
	FieldOutlierSuperior  = "pagoOutlierSuperior"
	FieldBaseTariff       = "tarifaBase"
	FieldFinalAmount      = "montoFinal"

	FieldValidated     = "validado"
	FieldReviewStatus  = "estadoRevision"
	FieldReviewComment = "comentarioRevision"
	FieldReviewedAt    = "fechaRevision"
	FieldReviewedBy    = "revisadoPor"
)

// FinanceFields are the classification-derived monetary and status fields.
var FinanceFields = []string{
	FieldTag,
	FieldTechnology,
	FieldTechnologyDetail,
	FieldTechnologyAmount,
	FieldNewbornStatus,
	FieldNewbornAmount,
	FieldRescueDelayDays,
	FieldDemoraRescate,
	FieldOutlierSuperior,
	FieldBaseTariff,
	FieldFinalAmount,
}

// ManagementFields are the review fields.
var ManagementFields = []string{
	FieldValidated,
	FieldReviewStatus,
	FieldReviewComment,
	FieldReviewedAt,
	FieldReviewedBy,
}

// UnrestrictedFields may be written by any role with a partition. None are
// defined yet.
var UnrestrictedFields = []string{}

// ImmutableFields identify the episode or were ingested from the source and
// cannot be updated by anyone.
var ImmutableFields = []string{
	FieldID,
	FieldEpisode,
	FieldFacility,
	FieldNationalID,
	FieldName,
	FieldAge,
	FieldSex,
	FieldCode,
	FieldWeight,
	FieldAdmission,
	FieldDischarge,
	FieldLengthOfStay,
	FieldDiagnosis,
	FieldInsurer,
	FieldService,
	FieldBatchID,
	FieldCreatedAt,
	FieldUpdatedAt,
}

// DerivedFields are owned by finance but always recomputed, never written.
var DerivedFields = []string{FieldBaseTariff, FieldFinalAmount}

var partitionOf = func() map[string]Partition {
	m := make(map[string]Partition)
	for _, f := range FinanceFields {
		m[f] = PartitionFinance
	}
	for _, f := range ManagementFields {
		m[f] = PartitionManagement
	}
	for _, f := range UnrestrictedFields {
		m[f] = PartitionUnrestricted
	}
	return m
}()

var immutable = toSet(ImmutableFields)
var derived = toSet(DerivedFields)

// PartitionOf returns the partition owning field.
func PartitionOf(field string) (Partition, bool) {
	p, ok := partitionOf[field]
	return p, ok
}

// IsImmutable reports whether field can never be updated.
func IsImmutable(field string) bool { return immutable[field] }

// IsDerived reports whether field is recomputed rather than written.
func IsDerived(field string) bool { return derived[field] }

func toSet(fields []string) map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}
