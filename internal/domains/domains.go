// Package domains holds the built-in decision domains: customer
// segmentation and payment routing. Field registries ship as embedded YAML
// so product can review them without reading Go.
package domains

import (
	"bytes"
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
)

// Domain names as used by the API, the CLI and the decision_trees table.
const (
	CustomerSegmentation = "customer-segmentation"
	PaymentRouting       = "payment-routing"
)

//go:embed fields/*.yaml
var fieldFS embed.FS

// descriptor ties a domain name to its embedded fields and result schema.
type descriptor struct {
	name    string
	file    string
	results rules.ResultSchema
}

var builtin = []descriptor{
	{name: CustomerSegmentation, file: "fields/customer_segmentation.yaml", results: SegmentResultSchema{}},
	{name: PaymentRouting, file: "fields/payment_routing.yaml", results: PaymentResultSchema{}},
}

// Names returns the built-in domain names in registration order.
func Names() []string {
	names := make([]string, len(builtin))
	for i, d := range builtin {
		names[i] = d.name
	}
	return names
}

// Register adds every built-in domain to reg. minResultNodes applies to each
// domain; zero keeps the engine default.
func Register(reg *rules.Registry, minResultNodes int) error {
	for _, d := range builtin {
		fields, err := Fields(d.name)
		if err != nil {
			return err
		}
		opts := rules.Options{MinResultNodes: minResultNodes, Results: d.results}
		if _, err := reg.Register(d.name, fields, rules.DefaultSchema{RequireKnownOptions: true}, opts); err != nil {
			return fmt.Errorf("register %s: %w", d.name, err)
		}
	}
	return nil
}

// Fields decodes the embedded field registry of a built-in domain.
func Fields(name string) (rules.FieldRegistry, error) {
	for _, d := range builtin {
		if d.name != name {
			continue
		}
		data, err := fieldFS.ReadFile(d.file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", d.file, err)
		}
		fields, err := ParseFields(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.file, err)
		}
		return fields, nil
	}
	return nil, &rules.UnknownDomainError{Name: name}
}

// ParseFields decodes a YAML field registry. Unknown keys are rejected so a
// typo such as "operator:" does not silently yield a field with no operators.
func ParseFields(data []byte) (rules.FieldRegistry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fields rules.FieldRegistry
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}
