package app

import (
	"reflect"

	"inventory-sync/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

var (
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
)

// decimalSchema accepts money either as a JSON number or a numeric string.
func decimalSchema(t reflect.Type) *jsonschema.Schema {
	if t != decimalType && t != nullDecimalType {
		return nil
	}
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`},
		},
	}
}

func generateSubmissionSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper:                    decimalSchema,
	}
	var v core.SaleSubmission
	item := reflector.Reflect(v)
	item.Version = ""

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "POS sale sync batch",
		Description: "Sales recorded offline by a POS register, submitted together for synchronization",
		Type:        "array",
		Items:       item,
	}
}
