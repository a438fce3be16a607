package inspectionsync

import (
	"fmt"
	"strings"

	"inspection-sync/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

const entityRefSchema = `{
	"type": "object",
	"required": ["entity", "id"],
	"properties": {
		"entity": {"type": "string", "minLength": 1},
		"id": {"type": "string", "minLength": 1}
	}
}`

var workOrderSchema = mustSchema(`{
	"type": "object",
	"required": ["occurredOn", "properties"],
	"properties": {
		"occurredOn": {"type": "string", "format": "date-time"},
		"properties": {
			"type": "object",
			"required": ["assetId", "description", "details", "createdBy", "c_priority", "c_jobstatus", "c_workordertype"],
			"properties": {
				"assetId": ` + entityRefSchema + `,
				"description": {"type": "string", "minLength": 1},
				"details": {"type": "string", "minLength": 1},
				"createdBy": ` + entityRefSchema + `,
				"c_priority": ` + entityRefSchema + `,
				"c_jobstatus": ` + entityRefSchema + `,
				"c_workordertype": ` + entityRefSchema + `
			}
		}
	}
}`)

var workOrderRequestSchema = mustSchema(`{
	"type": "object",
	"required": ["formId", "properties"],
	"properties": {
		"formId": {"type": "string", "minLength": 1},
		"properties": {
			"type": "object",
			"required": ["requestedOn", "assetId", "description", "details", "createdBy"],
			"properties": {
				"requestedOn": {"type": "string", "format": "date-time"},
				"assetId": ` + entityRefSchema + `,
				"description": {"type": "string", "minLength": 1},
				"details": {"type": "string", "minLength": 1},
				"createdBy": ` + entityRefSchema + `
			},
			"not": {"anyOf": [
				{"required": ["c_priority"]},
				{"required": ["c_jobstatus"]},
				{"required": ["c_workordertype"]}
			]}
		}
	}
}`)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid payload schema: %v", err))
	}
	return schema
}

// ValidateRecord checks the variant's payload against its JSON schema.
func ValidateRecord(record *models.OutboundWorkRecord) error {
	schema := workOrderRequestSchema
	if record.Variant == models.VariantWorkOrder {
		schema = workOrderSchema
	}
	if record.Payload() == nil {
		return fmt.Errorf("%s record has no payload", record.Variant)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(record.Payload()))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("payload validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
