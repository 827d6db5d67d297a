package permission

// DefaultCatalog is the capability catalog seeded for every installation.
// Entries are camelCase; lookups normalize their input to match.
var DefaultCatalog = []Capability{
	{Module: "auditFinding", Action: "create", Description: "Record and commit audit findings"},
	{Module: "auditFinding", Action: "read", Description: "Review findings of a department"},
	{Module: "auditFinding", Action: "update", Description: "Accept or refuse findings under review"},
	{Module: "auditProgram", Action: "create", Description: "Draft and submit audit programs"},
	{Module: "auditProgram", Action: "read", Description: "View audit programs"},
	{Module: "auditProgram", Action: "approve", Description: "Approve or reject audit programs"},
	{Module: "document", Action: "create", Description: "Request document changes"},
	{Module: "document", Action: "read", Description: "View controlled documents"},
	{Module: "document", Action: "approve", Description: "Approve document change requests"},
	{Module: "document", Action: "update", Description: "Apply approved document changes"},
	{Module: "notification", Action: "read", Description: "Read own notifications"},
	{Module: "permission", Action: "read", Description: "Inspect capability holders"},
	{Module: "permission", Action: "manage", Description: "Grant overrides and assign roles"},
}
