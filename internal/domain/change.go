package domain

import "encoding/json"

// Field names of a TicketChange, as reported in errors and history.
const (
	FieldStatus     = "status"
	FieldTechnician = "technician_id"
	FieldPriority   = "priority"
	FieldArea       = "area_id"
)

// Optional carries a value together with whether it was supplied at all.
// A supplied null is Set with the zero value; an omitted value is not Set.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a supplied Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// UnmarshalJSON marks the value as supplied. encoding/json only calls it for
// keys present in the document, including explicit nulls.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// TicketChange is a structured diff naming which lifecycle fields are mutated.
// Technician distinguishes omission (Set=false) from an explicit unassign
// (Set=true, Value=nil).
type TicketChange struct {
	Status     Optional[TicketStatus]
	Technician Optional[*string]
	Priority   Optional[TicketPriority]
	Area       Optional[string]
}

// IsEmpty reports whether no field is supplied.
func (c TicketChange) IsEmpty() bool {
	return !c.Status.Set && !c.Technician.Set && !c.Priority.Set && !c.Area.Set
}

// Fields lists the supplied field names in application order.
func (c TicketChange) Fields() []string {
	fields := make([]string, 0, 4)
	if c.Status.Set {
		fields = append(fields, FieldStatus)
	}
	if c.Technician.Set {
		fields = append(fields, FieldTechnician)
	}
	if c.Priority.Set {
		fields = append(fields, FieldPriority)
	}
	if c.Area.Set {
		fields = append(fields, FieldArea)
	}
	return fields
}
