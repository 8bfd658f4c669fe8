// migrate.go implements the ordered schema migration chain applied to imported
// documents before validation. Each step is a pure transformation from one
// schema tag to the next; unknown fields are dropped by the final decode into
// the typed Document, and missing required fields receive schema defaults.
package homescreen

import (
	"encoding/json"
	"fmt"
)

// schemaVersions lists known schema tags in migration order. The last entry is
// CurrentSchemaVersion.
var schemaVersions = []string{"1", "2"}

// migrations maps a source tag to the transformation producing the next tag.
// Steps operate on the generic map form so they can see fields the current
// typed Document no longer has (e.g. the schema-1 "ctaButton" key).
var migrations = map[string]func(map[string]any) map[string]any{
	"1": migrateV1ToV2,
}

// ValidateSchemaVersion rejects unknown and future schema tags.
func ValidateSchemaVersion(tag string) error {
	for _, v := range schemaVersions {
		if v == tag {
			return nil
		}
	}
	return fmt.Errorf("unknown schema version %q (supported: %v)", tag, schemaVersions)
}

// Migrate upgrades a raw document from fromVersion to the current schema and
// decodes it into a typed Document. Fields unknown to the current schema are
// dropped; a missing sectionOrder is filled with the default ordering of the
// sections actually present.
func Migrate(raw json.RawMessage, fromVersion string) (*Document, error) {
	if err := ValidateSchemaVersion(fromVersion); err != nil {
		return nil, err
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("malformed document: %w", err)
	}
	if generic == nil {
		generic = map[string]any{}
	}

	started := false
	for _, v := range schemaVersions {
		if v == fromVersion {
			started = true
		}
		if !started || v == CurrentSchemaVersion {
			continue
		}
		step, ok := migrations[v]
		if !ok {
			return nil, fmt.Errorf("no migration defined from schema version %q", v)
		}
		generic = step(generic)
	}

	// Round-trip through the typed struct: this is where unknown fields drop.
	intermediate, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode migrated document: %w", err)
	}
	doc, err := ParseDocument(intermediate)
	if err != nil {
		return nil, err
	}

	applyDefaults(doc)
	return doc, nil
}

// applyDefaults fills required fields the source document lacked. Defaults are
// schema-defined, never inferred from content.
func applyDefaults(doc *Document) {
	if len(doc.SectionOrder) == 0 {
		if present := doc.presentSections(); len(present) > 0 {
			doc.SectionOrder = present
		} else {
			doc.SectionOrder = append([]string(nil), DefaultSectionOrder...)
		}
	}
}

// migrateV1ToV2 upgrades a schema-1 document: the call-to-action section was
// named "ctaButton", and sectionOrder did not exist yet.
func migrateV1ToV2(doc map[string]any) map[string]any {
	if cta, ok := doc["ctaButton"]; ok {
		if _, exists := doc["cta"]; !exists {
			doc["cta"] = cta
		}
		delete(doc, "ctaButton")
	}
	// sectionOrder is injected by applyDefaults after the final decode, once
	// the surviving sections are known.
	return doc
}
