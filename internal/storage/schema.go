// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package storage

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaID is the $id of the generated record schema.
const SchemaID = "https://npcforge.dev/schemas/entity-record.schema.json"

var (
	schemaOnce sync.Once
	schemaVal  *jschema.Schema
	schemaErr  error
)

// GenerateSchema reflects the JSON Schema for a single entity record.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Record{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "NPCForge Entity Record"
	schema.Description = "Persisted form of one runtime entity"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.With("operation", "marshal record schema").Wrap(err)
	}
	return data, nil
}

func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			schemaErr = oops.With("operation", "parse record schema").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("record.json", doc); err != nil {
			schemaErr = oops.With("operation", "add record schema").Wrap(err)
			return
		}
		schemaVal, schemaErr = c.Compile("record.json")
		if schemaErr != nil {
			schemaErr = oops.With("operation", "compile record schema").Wrap(schemaErr)
		}
	})
	return schemaVal, schemaErr
}

// ValidateRecord checks a raw JSON record body against the record schema.
func ValidateRecord(raw []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.Code(CodeRecordInvalid).Wrapf(err, "record is not valid JSON")
	}
	if err := sch.Validate(doc); err != nil {
		return oops.Code(CodeRecordInvalid).Wrapf(err, "record failed schema validation")
	}
	return nil
}

// DecodeRecord validates and decodes a record body stored under id.
func DecodeRecord(id int64, raw []byte) (Record, error) {
	if err := ValidateRecord(raw); err != nil {
		return Record{}, oops.With("id", id).Wrap(err)
	}
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return Record{}, oops.Code(CodeRecordInvalid).With("id", id).Wrapf(err, "decoding record")
	}
	for k, v := range rec.Metadata {
		rec.Metadata[k] = restoreNumbers(v)
	}
	rec.ID = id
	return rec, nil
}

// restoreNumbers turns decoded JSON numbers back into int when integral
// and float64 otherwise, descending into maps and slices.
func restoreNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil && i == int64(int(i)) {
			return int(i)
		}
		f, _ := x.Float64() //nolint:errcheck // out of range yields ±Inf
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = restoreNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = restoreNumbers(e)
		}
		return x
	}
	return v
}
