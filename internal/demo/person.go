package demo

import (
	"fmt"

	"github.com/roach88/rfsync/internal/ir"
)

// Person is an address book entry, stored as a store.Entity.
type Person struct {
	ID      int64
	Version int64
	Name    string
	Email   string
	Phones  []string
	Address *Address
}

// Address is a value type embedded in its person's row.
type Address struct {
	Street string
	City   string
	Zip    string
}

func (p *Person) Kind() string { return PersonKind }

func (p *Person) Key() (int64, int64) { return p.ID, p.Version }

func (p *Person) SetKey(id, version int64) {
	p.ID, p.Version = id, version
}

func (p *Person) Encode() (ir.IRObject, error) {
	obj := ir.IRObject{
		"name":  ir.IRString(p.Name),
		"email": ir.IRString(p.Email),
	}
	if len(p.Phones) > 0 {
		phones := make(ir.IRArray, len(p.Phones))
		for i, ph := range p.Phones {
			phones[i] = ir.IRString(ph)
		}
		obj["phones"] = phones
	}
	if a := p.Address; a != nil {
		obj["address"] = ir.IRObject{
			"street": ir.IRString(a.Street),
			"city":   ir.IRString(a.City),
			"zip":    ir.IRString(a.Zip),
		}
	}
	return obj, nil
}

func (p *Person) Decode(payload ir.IRObject) error {
	var err error
	if p.Name, err = stringField(payload, "name"); err != nil {
		return err
	}
	if p.Email, err = stringField(payload, "email"); err != nil {
		return err
	}

	p.Phones = nil
	if raw, ok := payload["phones"]; ok && !ir.IsNull(raw) {
		arr, ok := raw.(ir.IRArray)
		if !ok {
			return fmt.Errorf("phones: expected array, got %T", raw)
		}
		for i, v := range arr {
			s, ok := v.(ir.IRString)
			if !ok {
				return fmt.Errorf("phones[%d]: expected string, got %T", i, v)
			}
			p.Phones = append(p.Phones, string(s))
		}
	}

	p.Address = nil
	if raw, ok := payload["address"]; ok && !ir.IsNull(raw) {
		obj, ok := raw.(ir.IRObject)
		if !ok {
			return fmt.Errorf("address: expected object, got %T", raw)
		}
		a := &Address{}
		if a.Street, err = stringField(obj, "street"); err != nil {
			return err
		}
		if a.City, err = stringField(obj, "city"); err != nil {
			return err
		}
		if a.Zip, err = stringField(obj, "zip"); err != nil {
			return err
		}
		p.Address = a
	}
	return nil
}

// stringField reads an optional string; absent and null read as "".
func stringField(obj ir.IRObject, name string) (string, error) {
	raw, ok := obj[name]
	if !ok || ir.IsNull(raw) {
		return "", nil
	}
	s, ok := raw.(ir.IRString)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", name, raw)
	}
	return string(s), nil
}
