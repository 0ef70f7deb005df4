package pipeline

import (
	"encoding/json"
	"iter"

	"github.com/rs/zerolog/log"

	"iac-crawler/internal/state"
)

// Values holds the allow-listed nested fields of a projected record. Each
// field is included only when present in the source; everything else is
// discarded.
type Values struct {
	ARN         *state.Node `json:"arn,omitempty"`
	Description *state.Node `json:"description,omitempty"`
	ID          *state.Node `json:"id,omitempty"`
	Name        *state.Node `json:"name,omitempty"`
	Tags        *state.Node `json:"tags,omitempty"`
	TagsAll     *state.Node `json:"tags_all,omitempty"`
}

// Record is the projected form of a resource sent to the collector: a strict
// subset of the reported fields. New upstream fields never leak through.
type Record struct {
	Address       string          `json:"address"`
	Mode          string          `json:"mode,omitempty"`
	Type          string          `json:"type,omitempty"`
	Name          string          `json:"name,omitempty"`
	ProviderName  string          `json:"provider_name,omitempty"`
	SchemaVersion json.RawMessage `json:"schema_version,omitempty"`
	Values        Values          `json:"values"`
}

// Project filters and projects a stream of resources down to the allow-listed
// field set. Resources missing an address or an arn are dropped and counted,
// not fatal.
func Project(resources iter.Seq[*state.Resource]) iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		dropped := 0
		for res := range resources {
			rec, ok := project(res)
			if !ok {
				dropped++
				continue
			}
			if !yield(rec) {
				return
			}
		}
		if dropped > 0 {
			log.Warn().Int("dropped", dropped).Msg("skipped resources missing required identity fields")
		}
	}
}

func project(res *state.Resource) (*Record, bool) {
	if res.Address == "" {
		log.Warn().Msg("skipping resource without 'address' field")
		return nil, false
	}
	if res.Values == nil || res.Values.Kind != state.KindObject || res.Values.Object["arn"] == nil {
		log.Warn().Str("address", res.Address).Msg("skipping resource without 'arn' field")
		return nil, false
	}

	values := res.Values.Object
	return &Record{
		Address:       res.Address,
		Mode:          res.Mode,
		Type:          res.Type,
		Name:          res.Name,
		ProviderName:  res.ProviderName,
		SchemaVersion: res.SchemaVersion,
		Values: Values{
			ARN:         values["arn"],
			Description: values["description"],
			ID:          values["id"],
			Name:        values["name"],
			Tags:        values["tags"],
			TagsAll:     values["tags_all"],
		},
	}, true
}
