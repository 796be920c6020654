// Package strategies manages the strategy aggregate: a named bundle of
// selector, field, and filter references. A strategy holds references, not
// copies; members must exist in their registries before being attached.
package strategies

import (
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/fields"
	"github.com/corvidlabs/magpie/internal/modules/filters"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
)

// Strategy is a membership aggregate over the three registries. The member
// slices are hydrated with full entities so a single read gives the client
// everything it needs to render or execute the strategy.
type Strategy struct {
	ID        uuid.UUID             `json:"id" msgpack:"id"`
	UserID    uuid.UUID             `json:"user_id" msgpack:"user_id"`
	Name      string                `json:"name" msgpack:"name"`
	Selectors []*selectors.Selector `json:"selectors" msgpack:"selectors"`
	Fields    []*fields.Field       `json:"fields" msgpack:"fields"`
	Filters   []*filters.Filter     `json:"filters" msgpack:"filters"`
	CreatedAt time.Time             `json:"created_at" msgpack:"created_at"`
}

// Validate checks required fields before persistence.
func (s *Strategy) Validate() error {
	var v domain.Validator

	v.Require(s.Name != "", "name is required")

	return v.Err()
}
