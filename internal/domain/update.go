package domain

// OptionalString distinguishes an absent field from an explicit null and a value.
type OptionalString struct {
	Set   bool
	Value *string
}

// SetString returns an OptionalString holding v.
func SetString(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}

// NullString returns an OptionalString that clears the field.
func NullString() OptionalString {
	return OptionalString{Set: true}
}

// TicketUpdate is a partial metadata update. Nil / unset fields are left untouched.
type TicketUpdate struct {
	Status          *TicketStatus
	Priority        *TicketPriority
	AssignedAgentID OptionalString
	Tags            *[]string

	// ExpectedStatus guards the write: the store applies the update only while the
	// ticket still has this status. It is not itself a field change.
	ExpectedStatus *TicketStatus
}

// IsEmpty reports whether the update carries no fields.
func (u TicketUpdate) IsEmpty() bool {
	return u.Status == nil && u.Priority == nil && !u.AssignedAgentID.Set && u.Tags == nil
}

// Apply mutates t with the fields present in u. The timeline is never touched.
func (u TicketUpdate) Apply(t *Ticket) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.AssignedAgentID.Set {
		t.AssignedAgentID = cloneString(u.AssignedAgentID.Value)
	}
	if u.Tags != nil {
		t.Tags = append([]string{}, (*u.Tags)...)
	}
}

// Fields lists the names of the fields present, for events and logs.
func (u TicketUpdate) Fields() []string {
	var fields []string
	if u.Status != nil {
		fields = append(fields, "status")
	}
	if u.Priority != nil {
		fields = append(fields, "priority")
	}
	if u.AssignedAgentID.Set {
		fields = append(fields, "assigned_agent_id")
	}
	if u.Tags != nil {
		fields = append(fields, "tags")
	}
	return fields
}
