package api

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

type domainSummary struct {
	Name           string `json:"name"`
	MinResultNodes int    `json:"minResultNodes"`
	FieldCount     int    `json:"fieldCount"`
}

// ListDomains returns {"domains": [{name, minResultNodes, fieldCount}]}.
func (s *DecisionService) ListDomains(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct{}
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}

	reg := s.engine.Registry()
	summaries := []domainSummary{}
	for _, name := range reg.Names() {
		d, err := reg.Domain(name)
		if err != nil {
			continue
		}
		summaries = append(summaries, domainSummary{
			Name:           d.Name,
			MinResultNodes: d.MinResultNodes(),
			FieldCount:     len(d.Fields),
		})
	}
	return encode(map[string]any{"domains": summaries})
}

type domainRequest struct {
	Domain string `json:"domain"`
}

type domainDescription struct {
	Name           string                              `json:"name"`
	MinResultNodes int                                 `json:"minResultNodes"`
	Fields         rules.FieldRegistry                 `json:"fields"`
	Operators      map[rules.ValueType][]rules.Operator `json:"operators"`
}

// DescribeDomain takes {"domain"} and returns the field registry together
// with the operator family of every value type it uses.
func (s *DecisionService) DescribeDomain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in domainRequest
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	if err := required("domain", in.Domain); err != nil {
		return nil, toStatus(err)
	}

	d, err := s.engine.Registry().Domain(in.Domain)
	if err != nil {
		return nil, toStatus(err)
	}

	families := make(map[rules.ValueType][]rules.Operator)
	for _, f := range d.Fields {
		if _, ok := families[f.ValueType]; !ok {
			families[f.ValueType] = rules.Family(f.ValueType)
		}
	}

	return encode(domainDescription{
		Name:           d.Name,
		MinResultNodes: d.MinResultNodes(),
		Fields:         d.Fields,
		Operators:      families,
	})
}

// NewCondition takes {"domain", "field"} and returns {"condition"} seeded
// with the field's first operator and a placeholder value.
func (s *DecisionService) NewCondition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		Domain string `json:"domain"`
		Field  string `json:"field"`
	}
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	if err := required("domain", in.Domain); err != nil {
		return nil, toStatus(err)
	}
	if err := required("field", in.Field); err != nil {
		return nil, toStatus(err)
	}

	d, err := s.engine.Registry().Domain(in.Domain)
	if err != nil {
		return nil, toStatus(err)
	}

	cond, err := rules.CreateEmptyCondition(in.Field, d.Fields)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]types.Condition{"condition": cond})
}
