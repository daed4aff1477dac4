package proxy

import "github.com/roach88/rfsync/internal/domain"

// Visitor walks the declared properties of a proxy.
//
// Scalar properties go to VisitValue. Everything else (references,
// collections and untyped properties) goes to VisitReference. value is the
// current client value, nil if unset.
type Visitor interface {
	VisitValue(prop domain.Property, value any) error
	VisitReference(prop domain.Property, value any) error
}

// IsValueProperty reports whether prop is visited as a value.
func IsValueProperty(prop domain.Property) bool {
	return prop.Type.IsScalar()
}

// Accept visits every declared property in order, stopping at the first
// error.
func (p *Proxy) Accept(v Visitor) error {
	for _, prop := range p.typ.Properties {
		value := p.values[prop.Name]
		var err error
		if IsValueProperty(prop) {
			err = v.VisitValue(prop, value)
		} else {
			err = v.VisitReference(prop, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
