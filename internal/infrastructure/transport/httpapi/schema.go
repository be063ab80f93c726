package httpapi

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"cacheview/internal/domain/snapshot"
	"cacheview/internal/errs"
)

// SnapshotSchema describes the payload of every /ws text message.
func SnapshotSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(snapshot.Snapshot{})
	schema.Title = "cacheview snapshot"
	schema.Description = "Ordered cache entries; each message replaces the previous snapshot."

	payload, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errs.Wrap(err, "encode snapshot schema")
	}
	return payload, nil
}
