package domain

// Known field labels. The scraper may emit more; these are the ones the
// exporter orders columns by and the processor defaults.
const (
	FieldCode         = "code"
	FieldPrefix       = "prefix"
	FieldName         = "name"
	FieldNameJA       = "name_ja"
	FieldNameEN       = "name_en"
	FieldCategory     = "category"
	FieldOrganization = "organization"
	FieldAddress      = "address"
	FieldPhone        = "phone"
	FieldURL          = "url"
	FieldOverview     = "overview"
	FieldContact      = "contact"
)

// ColumnOrder fixes the tabular header row.
var ColumnOrder = []string{
	FieldCode,
	FieldPrefix,
	FieldName,
	FieldNameJA,
	FieldNameEN,
	FieldCategory,
	FieldOrganization,
	FieldAddress,
	FieldPhone,
	FieldURL,
	FieldOverview,
	FieldContact,
}

// DefaultValues fills columns the source page omitted.
var DefaultValues = map[string]string{
	FieldName:         "",
	FieldNameJA:       "",
	FieldNameEN:       "",
	FieldCategory:     "未分類",
	FieldOrganization: "",
	FieldAddress:      "",
	FieldPhone:        "",
	FieldURL:          "",
	FieldOverview:     "",
	FieldContact:      "",
}
